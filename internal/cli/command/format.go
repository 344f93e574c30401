// Package command provides CLI command definitions for lettuce-cli.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thachlp/lettuce/resp"
)

// FormatReply renders a reply tree the way redis-cli would.
func FormatReply(r *resp.Reply) string {
	var b strings.Builder
	formatInto(&b, r, 0)
	return strings.TrimRight(b.String(), "\n")
}

func formatInto(b *strings.Builder, r *resp.Reply, depth int) {
	indent := strings.Repeat("  ", depth)
	if r == nil || r.Null {
		fmt.Fprintf(b, "%s(nil)\n", indent)
		return
	}

	switch r.Kind {
	case resp.KindSimpleString:
		fmt.Fprintf(b, "%s%s\n", indent, r.Str)
	case resp.KindError:
		fmt.Fprintf(b, "%s(error) %s\n", indent, r.Str)
	case resp.KindInteger:
		fmt.Fprintf(b, "%s(integer) %d\n", indent, r.Int)
	case resp.KindDouble:
		fmt.Fprintf(b, "%s(double) %s\n", indent, strconv.FormatFloat(r.Float, 'g', -1, 64))
	case resp.KindBoolean:
		fmt.Fprintf(b, "%s(boolean) %t\n", indent, r.Int != 0)
	case resp.KindBigNumber:
		fmt.Fprintf(b, "%s(big number) %s\n", indent, r.Str)
	case resp.KindBulkString, resp.KindVerbatim:
		fmt.Fprintf(b, "%s%q\n", indent, string(r.Bulk))
	case resp.KindNull:
		fmt.Fprintf(b, "%s(nil)\n", indent)
	case resp.KindArray, resp.KindSet, resp.KindPush, resp.KindMap:
		if len(r.Elems) == 0 {
			fmt.Fprintf(b, "%s(empty)\n", indent)
			return
		}
		for i, e := range r.Elems {
			fmt.Fprintf(b, "%s%d)\n", indent, i+1)
			formatInto(b, e, depth+1)
		}
	default:
		fmt.Fprintf(b, "%s(unknown reply kind %q)\n", indent, byte(r.Kind))
	}
}
