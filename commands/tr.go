package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/embedsh/embedsh/core/host"
)

// Tr implements a limited tr command: one-to-one character translation
// and -d deletion. Ranges like a-z are supported; character classes are
// not.
func Tr(p *host.Proc) int {
	cmd := &SimpleCommand{
		Use:   "tr [-d] SET1 [SET2]",
		Short: "Translate or delete characters read from standard input.",
	}

	opts := cmd.Flags()
	del := opts.Bool('d', "delete characters in SET1")

	return cmd.Run(p, func() int {
		args := opts.Args()

		fail := func(msg string) int {
			fmt.Fprintf(p.Stderr, "tr: %s\n", msg)
			return 1
		}

		var translate func(rune) rune
		switch {
		case *del:
			if len(args) != 1 {
				return fail("-d requires exactly one set")
			}
			set := expandSet(args[0])
			translate = func(r rune) rune {
				if strings.ContainsRune(set, r) {
					return -1
				}
				return r
			}
		case len(args) == 2:
			from, to := expandSet(args[0]), expandSet(args[1])
			if len(to) == 0 {
				return fail("empty replacement set")
			}
			translate = func(r rune) rune {
				idx := strings.IndexRune(from, r)
				switch {
				case idx < 0:
					return r
				case idx >= len(to):
					// POSIX pads SET2 with its last character.
					return rune(to[len(to)-1])
				default:
					return rune(to[idx])
				}
			}
		default:
			return fail("missing operand")
		}

		out := bufio.NewWriter(p.Stdout)
		defer out.Flush()

		in := bufio.NewReader(p.Stdin)
		for {
			r, _, err := in.ReadRune()
			if err == io.EOF {
				return 0
			}
			if err != nil {
				return fail(err.Error())
			}
			if r = translate(r); r >= 0 {
				out.WriteRune(r)
			}
		}
	})
}

// expandSet expands a-z style ranges into the literal character set.
func expandSet(set string) string {
	var sb strings.Builder
	runes := []rune(set)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' && runes[i+2] >= runes[i] {
			for r := runes[i]; r <= runes[i+2]; r++ {
				sb.WriteRune(r)
			}
			i += 2
			continue
		}
		sb.WriteRune(runes[i])
	}
	return sb.String()
}

var _ host.ProgramFunc = Tr

func init() {
	addBinCmd("tr", Tr)
}
