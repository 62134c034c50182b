// Package persona loads the identity kernel: the prose files that define
// who the entity is, concatenated once at startup.
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// fileByteLimit caps each kernel file's contribution to the prompt.
const fileByteLimit = 3000

// priorityFiles are loaded in order; missing files are skipped.
var priorityFiles = []string{
	"01_Raec_Profile.txt",
	"Conversational_Directives.txt",
	"14_Lexicon_Archive.txt",
}

// Kernel is the cached identity block.
type Kernel struct {
	text   string
	loaded []string
}

// Load reads the priority files from dir and assembles the kernel block.
// A missing directory or files yields a minimal kernel, not an error: the
// entity still runs, just with less of itself.
func Load(dir string, logger *zap.Logger) *Kernel {
	var b strings.Builder
	b.WriteString("=== RAEC IDENTITY KERNEL ===")

	var loaded []string
	for _, fname := range priorityFiles {
		content, err := os.ReadFile(filepath.Join(dir, fname))
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(&b, "\n[Failed to load %s: %v]", fname, err)
			}
			continue
		}
		text := strings.TrimSpace(string(content))
		if len(text) > fileByteLimit {
			text = text[:fileByteLimit] + "\n[...truncated for context budget]"
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s", fname, text)
		loaded = append(loaded, fname)
	}

	b.WriteString("\n=== END IDENTITY KERNEL ===")

	logger.Info("personality kernel loaded",
		zap.Int("files", len(loaded)),
		zap.Strings("names", loaded))

	return &Kernel{text: b.String(), loaded: loaded}
}

// Text returns the assembled kernel block.
func (k *Kernel) Text() string { return k.text }

// Files returns the names of the files that loaded successfully.
func (k *Kernel) Files() []string { return k.loaded }
