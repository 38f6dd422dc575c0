package problemimport

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"oj/internal/model"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestParseStandardProblem(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"problem.yaml": `
name: aplusb
kind: standard
cases:
  - name: "01"
    score: 50
    time_limit_us: 1000000
    memory_limit_bytes: 268435456
  - name: "02"
    score: 50
    time_limit_us: 1000000
    memory_limit_bytes: 268435456
`,
		"data/01.in":  "1 2\n",
		"data/01.out": "3\n",
		"data/02.in":  "10 20\n",
		"data/02.out": "30\n",
	})

	dest := filepath.Join(t.TempDir(), "aplusb")
	problem, err := Parse(data, dest)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if problem.Name != "aplusb" || problem.Kind != model.CheckerStandard {
		t.Fatalf("unexpected problem: %+v", problem)
	}
	if len(problem.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(problem.Cases))
	}
	for _, pc := range problem.Cases {
		if _, err := os.Stat(pc.InputPath); err != nil {
			t.Fatalf("input file not written: %v", err)
		}
		if _, err := os.Stat(pc.AnswerPath); err != nil {
			t.Fatalf("answer file not written: %v", err)
		}
	}
}

func TestParseSpecialProblemRequiresJudgeScript(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"problem.yaml": `
name: floatcmp
kind: special
special_judge_path: judge.lua
cases:
  - name: "01"
    score: 100
`,
		"data/01.in":  "1.0\n",
		"data/01.out": "1.0\n",
		"judge.lua":   `set_result(true, "ok")`,
	})

	problem, err := Parse(data, filepath.Join(t.TempDir(), "floatcmp"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if problem.SpecialJudgePath == "" {
		t.Fatalf("expected special judge path to be set")
	}
	if _, err := os.Stat(problem.SpecialJudgePath); err != nil {
		t.Fatalf("judge script not written: %v", err)
	}
}

func TestParseRejectsMissingProblemYAML(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"data/01.in": "1\n",
	})
	if _, err := Parse(data, t.TempDir()); err == nil {
		t.Fatalf("expected an error when problem.yaml is missing")
	}
}

func TestParseRejectsMissingCaseFile(t *testing.T) {
	data := buildArchive(t, map[string]string{
		"problem.yaml": `
name: broken
cases:
  - name: "01"
    score: 100
`,
		"data/01.in": "1\n",
	})
	if _, err := Parse(data, t.TempDir()); err == nil {
		t.Fatalf("expected an error when a case's .out file is missing")
	}
}

func TestParseRejectsNonZipData(t *testing.T) {
	if _, err := Parse([]byte("not a zip"), t.TempDir()); err == nil {
		t.Fatalf("expected an error for non-zip input")
	}
}

func TestParseRejectsPathTraversal(t *testing.T) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, _ := zw.Create("../../etc/passwd")
	w.Write([]byte("x"))
	zw.Close()

	if _, err := Parse(buf.Bytes(), t.TempDir()); err == nil {
		t.Fatalf("expected an error for a path-traversal entry")
	}
}
