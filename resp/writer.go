package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Writer encodes command frames onto a connection.
//
// A command is always written as an array of bulk strings; the server
// never sees any other request shape. Writer buffers internally, so
// callers batch frames and Flush once.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter returns a Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteCommand appends one command frame to the buffer. args must
// already be encoded to bytes by the command-builder surface.
func (w *Writer) WriteCommand(name string, args [][]byte) error {
	if err := w.writeArrayHeader(1 + len(args)); err != nil {
		return err
	}
	if err := w.writeBulkString(name); err != nil {
		return err
	}
	for _, arg := range args {
		if err := w.writeBulk(arg); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes all buffered frames to the underlying connection.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func (w *Writer) writeArrayHeader(n int) error {
	_, err := w.bw.WriteString("*" + strconv.Itoa(n) + "\r\n")
	return err
}

func (w *Writer) writeBulkString(s string) error {
	if _, err := w.bw.WriteString("$" + strconv.Itoa(len(s)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(s); err != nil {
		return err
	}
	_, err := w.bw.WriteString("\r\n")
	return err
}

func (w *Writer) writeBulk(b []byte) error {
	if _, err := w.bw.WriteString("$" + strconv.Itoa(len(b)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	_, err := w.bw.WriteString("\r\n")
	return err
}
