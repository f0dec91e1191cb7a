package app

import (
	"log"
	"sync"

	atotto "github.com/atotto/clipboard"
	"golang.design/x/clipboard"
)

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

// InitClipboard prepares the native clipboard. It is safe to call more than once.
func InitClipboard() error {
	clipboardOnce.Do(func() {
		clipboardErr = clipboard.Init()
		if clipboardErr != nil {
			log.Printf("native clipboard unavailable, falling back: %v", clipboardErr)
		}
	})
	return clipboardErr
}

// writeClipboard copies text, using the command-line clipboard tools when the
// native clipboard could not be initialised.
func writeClipboard(text string) error {
	if InitClipboard() == nil {
		clipboard.Write(clipboard.FmtText, []byte(text))
		return nil
	}
	return atotto.WriteAll(text)
}
