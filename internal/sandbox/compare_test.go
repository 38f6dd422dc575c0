package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"oj/internal/model"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestCompareStandardIgnoresTrailingWhitespace(t *testing.T) {
	dir := t.TempDir()
	answer := writeTemp(t, dir, "answer.txt", "42\n")
	actual := writeTemp(t, dir, "actual.txt", "42 \n")

	res, err := Compare(model.CheckerStandard, answer, actual, "", "")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected Standard comparison to accept trailing whitespace, got %+v", res)
	}
}

func TestCompareStrictRejectsTrailingWhitespace(t *testing.T) {
	dir := t.TempDir()
	answer := writeTemp(t, dir, "answer.txt", "42\n")
	actual := writeTemp(t, dir, "actual.txt", "42 \n")

	res, err := Compare(model.CheckerStrict, answer, actual, "", "")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Accepted {
		t.Fatalf("expected Strict comparison to reject trailing whitespace, got %+v", res)
	}
}

func TestCompareStrictExactMatch(t *testing.T) {
	dir := t.TempDir()
	answer := writeTemp(t, dir, "answer.txt", "42\n")
	actual := writeTemp(t, dir, "actual.txt", "42\n")

	res, err := Compare(model.CheckerStrict, answer, actual, "", "")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected identical bytes to be accepted, got %+v", res)
	}
}

func TestCompareStandardDiffersOnLineCount(t *testing.T) {
	dir := t.TempDir()
	answer := writeTemp(t, dir, "answer.txt", "1\n2\n")
	actual := writeTemp(t, dir, "actual.txt", "1\n")

	res, err := Compare(model.CheckerStandard, answer, actual, "", "")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Accepted {
		t.Fatalf("expected line count mismatch to be rejected")
	}
}

func TestCompareSpecialRunsLuaScript(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "in.txt", "3 4\n")
	answer := writeTemp(t, dir, "answer.txt", "7\n")
	actual := writeTemp(t, dir, "actual.txt", "7\n")
	script := writeTemp(t, dir, "judge.lua", `
if actual == expected then
  set_result(true, "matched")
else
  set_result(false, "mismatched")
end
`)

	res, err := Compare(model.CheckerSpecial, answer, actual, input, script)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !res.Accepted || res.Info != "matched" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCompareSpecialScriptMustCallSetResult(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "in.txt", "")
	answer := writeTemp(t, dir, "answer.txt", "")
	actual := writeTemp(t, dir, "actual.txt", "")
	script := writeTemp(t, dir, "judge.lua", `-- never calls set_result`)

	if _, err := Compare(model.CheckerSpecial, answer, actual, input, script); err == nil {
		t.Fatalf("expected an error when the script never calls set_result")
	}
}
