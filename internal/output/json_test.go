package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sampleReport struct {
	SchemaVersion string `json:"schemaVersion"`
	HealthScore   int    `json:"healthScore"`
}

func TestWriteJSONToFile(t *testing.T) {
	report := sampleReport{SchemaVersion: "1.0.0", HealthScore: 100}

	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "report.json")

	if err := WriteJSON(report, outPath); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"schemaVersion": "1.0.0"`) {
		t.Errorf("output missing schemaVersion: %q", content)
	}
	if !strings.Contains(content, `"healthScore": 100`) {
		t.Errorf("output missing healthScore: %q", content)
	}
}

func TestWriteJSONStdout(t *testing.T) {
	report := sampleReport{SchemaVersion: "1.0.0"}

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := WriteJSON(report, "-")

	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("WriteJSON to stdout: %v", err)
	}

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	if n == 0 {
		t.Error("no output to stdout")
	}
}
