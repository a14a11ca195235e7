// Example program demonstrating the gitsituation library API.
//
// Run from the repo root:
//
//	go run ./example/
//
// With remote mode (set GITHUB_TOKEN first):
//
//	GITHUB_TOKEN=ghp_xxx go run ./example/
package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/MyCarrier-DevOps/go-gitsituation/pkg/gitsituation"
)

func main() {
	localSituation()

	if os.Getenv("GITHUB_TOKEN") != "" {
		remoteSituation()
	}
}

func localSituation() {
	s, err := gitsituation.Open(gitsituation.LocalOptions{
		Path: ".",
	})
	if err != nil {
		log.Fatalf("local inspection failed: %v", err)
	}

	printSituation("Local", s)
}

func remoteSituation() {
	s, err := gitsituation.OpenRemote(gitsituation.RemoteOptions{
		Owner: "MyCarrier-DevOps",
		Repo:  "go-gitsituation",
		Token: os.Getenv("GITHUB_TOKEN"),
		Ref:   "main",
	})
	if err != nil {
		log.Fatalf("remote inspection failed: %v", err)
	}

	printSituation("Remote", s)
}

func printSituation(label string, s *gitsituation.Situation) {
	vars, err := gitsituation.Variables(s)
	if err != nil {
		log.Fatalf("%s variables failed: %v", label, err)
	}

	fmt.Printf("=== %s Situation ===\n", label)

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%-24s %s\n", k, vars[k])
	}
	fmt.Println()
}
