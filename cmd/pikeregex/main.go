// Command pikeregex is a two-level REPL over package pikeregex: a
// pattern prompt, then a subject-line prompt that re-uses the compiled
// pattern until the user types "return" to go back.
package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/coregx/pikeregex"
)

func main() {
	fmt.Println("pikeregex REPL")
	fmt.Println("Type an empty pattern to exit.")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "regex> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Println("readline init error:", err)
		return
	}
	defer rl.Close()

	for {
		pattern, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return
			}
			fmt.Println("error reading pattern:", err)
			continue
		}
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			return
		}

		re, err := pikeregex.Compile(pattern)
		if err != nil {
			fmt.Println("compile error:", err)
			continue
		}

		runSubjectLoop(rl, re)
	}
}

func runSubjectLoop(rl *readline.Instance, re *pikeregex.Regex) {
	fmt.Println("Type return to go back to the regex prompt.")
	rl.SetPrompt("input> ")
	defer rl.SetPrompt("regex> ")

	for {
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return
			}
			fmt.Println("error reading input:", err)
			continue
		}
		input = strings.TrimSpace(input)
		if input == "return" {
			return
		}

		caps, ok := re.FindCaptures(input)
		if !ok {
			fmt.Println("No match.")
			continue
		}
		fmt.Println("Matched!")
		for i := 0; i < caps.GroupLen(); i++ {
			if m, ok := caps.Get(i); ok {
				fmt.Printf("Group %d: %q\n", i, m.Slice())
			} else {
				fmt.Printf("Group %d: None\n", i)
			}
		}
	}
}
