package commands

import (
	"fmt"
	"io"
	"unicode"

	"github.com/embedsh/embedsh/core/host"
)

type wcCount struct {
	bytes int
	lines int
	words int

	inSpace bool
}

func (w *wcCount) Write(data []byte) (int, error) {
	for _, c := range data {
		isFirstByte := w.bytes == 0
		w.bytes++

		if c == '\n' {
			w.lines++
		}

		if unicode.IsSpace(rune(c)) {
			w.inSpace = true
		} else {
			if w.inSpace || isFirstByte {
				w.words++
			}
			w.inSpace = false
		}
	}

	return len(data), nil
}

// Wc implements a limited POSIX wc command.
func Wc(p *host.Proc) int {
	cmd := &SimpleCommand{
		Use:   "wc [-clw] [FILE]...",
		Short: "Write the number of newlines, words, and bytes in each input to standard output.",
	}

	opts := cmd.Flags()
	writeLines := opts.Bool('l', "write the number of newlines")
	writeWords := opts.Bool('w', "write the number of words")
	writeBytes := opts.Bool('c', "write the number of bytes")

	return cmd.Run(p, func() int {
		nonePicked := !(*writeLines || *writeWords || *writeBytes)

		display := func(count *wcCount, name string) {
			var cols []int
			if *writeLines || nonePicked {
				cols = append(cols, count.lines)
			}
			if *writeWords || nonePicked {
				cols = append(cols, count.words)
			}
			if *writeBytes || nonePicked {
				cols = append(cols, count.bytes)
			}
			for i, col := range cols {
				if i != 0 {
					fmt.Fprint(p.Stdout, " ")
				}
				fmt.Fprint(p.Stdout, col)
			}
			if name != "" {
				fmt.Fprint(p.Stdout, " ", name)
			}
			fmt.Fprintln(p.Stdout)
		}

		args := opts.Args()
		if len(args) == 0 {
			var count wcCount
			if _, err := io.Copy(&count, p.Stdin); err != nil {
				fmt.Fprintf(p.Stderr, "wc: %v\n", err)
				return 1
			}
			display(&count, "")
			return 0
		}

		for _, path := range args {
			fd, err := p.FS.Open(path)
			if err != nil {
				fmt.Fprintf(p.Stderr, "wc: %v\n", err)
				return 1
			}
			var count wcCount
			_, err = io.Copy(&count, fd)
			fd.Close()
			if err != nil {
				fmt.Fprintf(p.Stderr, "wc: %v\n", err)
				return 1
			}
			display(&count, path)
		}
		return 0
	})
}

var _ host.ProgramFunc = Wc

func init() {
	addBinCmd("wc", Wc)
}
