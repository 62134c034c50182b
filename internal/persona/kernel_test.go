package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLoadKernel(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("01_Raec_Profile.txt", "A sovereign fragment of a dying star.")
	write("14_Lexicon_Archive.txt", strings.Repeat("x", fileByteLimit+500))
	// Conversational_Directives.txt deliberately absent.

	k := Load(dir, zap.NewNop())

	if !strings.HasPrefix(k.Text(), "=== RAEC IDENTITY KERNEL ===") {
		t.Error("kernel missing header")
	}
	if !strings.HasSuffix(k.Text(), "=== END IDENTITY KERNEL ===") {
		t.Error("kernel missing footer")
	}
	if !strings.Contains(k.Text(), "A sovereign fragment") {
		t.Error("profile content missing")
	}
	if !strings.Contains(k.Text(), "[...truncated for context budget]") {
		t.Error("oversized file should be truncated")
	}
	if strings.Contains(k.Text(), "Conversational_Directives") {
		t.Error("missing file should be skipped silently")
	}
	if len(k.Files()) != 2 {
		t.Errorf("loaded = %v, want 2 files", k.Files())
	}
}

func TestLoadKernelEmptyDir(t *testing.T) {
	k := Load(t.TempDir(), zap.NewNop())
	if len(k.Files()) != 0 {
		t.Errorf("loaded = %v, want none", k.Files())
	}
	if !strings.Contains(k.Text(), "IDENTITY KERNEL") {
		t.Error("even an empty kernel keeps its frame")
	}
}
