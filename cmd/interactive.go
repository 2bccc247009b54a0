package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"media-viewer-engine/internal/session"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Drive a session from the keyboard",
	Long: `Open a session and map key presses to viewer intents: arrows and
PageUp/PageDown navigate, Home/End jump, +/- zoom, 0 resets the viewport,
v toggles the variant, space toggles autoplay and Escape or q closes.

When stdin is not a terminal, each input line is read as a key name or an
intent name.`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
	addSourceFlags(interactiveCmd)
}

var escapeSequences = map[string]string{
	"\x1b[A":  "ArrowUp",
	"\x1b[B":  "ArrowDown",
	"\x1b[C":  "ArrowRight",
	"\x1b[D":  "ArrowLeft",
	"\x1b[H":  "Home",
	"\x1b[F":  "End",
	"\x1bOH":  "Home",
	"\x1bOF":  "End",
	"\x1b[1~": "Home",
	"\x1b[4~": "End",
	"\x1b[5~": "PageUp",
	"\x1b[6~": "PageDown",
}

// decodeKeys splits raw terminal input into key names. Unrecognised
// escape sequences are dropped.
func decodeKeys(buf []byte) []string {
	var keys []string
	for len(buf) > 0 {
		if buf[0] == 0x1b {
			if len(buf) == 1 {
				keys = append(keys, "Escape")
				break
			}
			if buf[1] != '[' && buf[1] != 'O' {
				keys = append(keys, "Escape")
				buf = buf[1:]
				continue
			}
			end := 2
			for end < len(buf) && (buf[end] < 0x40 || buf[end] > 0x7e) {
				end++
			}
			if end < len(buf) {
				end++
			}
			if name, ok := escapeSequences[string(buf[:end])]; ok {
				keys = append(keys, name)
			}
			buf = buf[end:]
			continue
		}

		switch buf[0] {
		case 0x03, 0x04:
			keys = append(keys, "Escape")
			buf = buf[1:]
			continue
		case '\r', '\n':
			buf = buf[1:]
			continue
		case ' ':
			keys = append(keys, "Space")
			buf = buf[1:]
			continue
		}

		r, size := utf8.DecodeRune(buf)
		if r != utf8.RuneError {
			keys = append(keys, string(r))
		}
		buf = buf[size:]
	}
	return keys
}

// lineIntent reads one line-mode command: an intent name or a key name.
func lineIntent(line string) session.Intent {
	line = strings.TrimSpace(line)
	if intent, ok := session.ParseIntent(line); ok {
		return intent
	}
	if line == "" {
		return session.IntentNone
	}
	return session.IntentForKey(line)
}

// console serialises status output between the key loop and autoplay.
type console struct {
	mu   sync.Mutex
	out  io.Writer
	raw  bool
	last int
}

func (c *console) status(sess *session.Session) {
	snap := sess.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = snap.Current
	name := ""
	variant := ""
	if snap.Current >= 0 && snap.Current < len(snap.Slots) {
		name = snap.Slots[snap.Current].Name
		variant = string(snap.Slots[snap.Current].Variant)
	}
	line := fmt.Sprintf("[%d/%d] %s  %s  zoom %.2f  offset %.0f,%.0f",
		snap.Current+1, len(snap.Slots), name, variant,
		snap.Viewport.Zoom, snap.Viewport.TranslateX, snap.Viewport.TranslateY)
	if snap.Autoplay {
		line += "  autoplay"
	}
	if c.raw {
		fmt.Fprintf(c.out, "\r\x1b[2K%s", line)
		return
	}
	fmt.Fprintln(c.out, line)
}

func (c *console) errorf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if c.raw {
		fmt.Fprintf(c.out, "\r\x1b[2K%s\r\n", msg)
		return
	}
	fmt.Fprintln(c.out, msg)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	con := &console{out: cmd.OutOrStdout(), last: -1}
	remove := a.sess.OnStateChanged(func(int) {
		if a.sess.Current() != con.current() {
			con.status(a.sess)
		}
	})
	defer remove()

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() {
			_ = term.Restore(int(f.Fd()), state)
			fmt.Fprintln(con.out)
		}()
		con.raw = true
		con.status(a.sess)
		return rawLoop(cmd, f, a.sess, con)
	}

	con.status(a.sess)
	return lineLoop(cmd, in, a.sess, con)
}

func (c *console) current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func rawLoop(cmd *cobra.Command, in io.Reader, sess *session.Session, con *console) error {
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		for _, key := range decodeKeys(buf[:n]) {
			if done := dispatch(cmd, sess, con, session.IntentForKey(key)); done {
				return nil
			}
		}
	}
}

func lineLoop(cmd *cobra.Command, in io.Reader, sess *session.Session, con *console) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		intent := lineIntent(scanner.Text())
		if intent == session.IntentNone {
			con.errorf("unknown key %q", strings.TrimSpace(scanner.Text()))
			continue
		}
		if done := dispatch(cmd, sess, con, intent); done {
			return nil
		}
	}
	return scanner.Err()
}

// dispatch performs intent and reports whether the session was closed.
func dispatch(cmd *cobra.Command, sess *session.Session, con *console, intent session.Intent) bool {
	if intent == session.IntentNone {
		return false
	}
	if err := sess.Dispatch(cmd.Context(), intent); err != nil {
		if errors.Is(err, session.ErrClosed) {
			return true
		}
		con.errorf("%s: %v", intent, err)
	}
	if intent == session.IntentClose {
		return true
	}
	con.status(sess)
	return false
}
