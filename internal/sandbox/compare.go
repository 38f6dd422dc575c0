package sandbox

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"oj/internal/model"
)

// CompareResult is the outcome of Compare.
type CompareResult struct {
	Accepted bool
	Info     string
}

// Compare applies the comparison semantics named by kind. For CheckerSpecial,
// specialScript must name a Lua file implementing the judge.
func Compare(kind model.CheckerKind, answerPath, actualPath, inputPath, specialScript string) (CompareResult, error) {
	switch kind {
	case model.CheckerStrict:
		return compareStrict(answerPath, actualPath)
	case model.CheckerSpecial:
		return compareSpecial(specialScript, inputPath, answerPath, actualPath)
	default:
		return compareStandard(answerPath, actualPath)
	}
}

func compareStrict(answerPath, actualPath string) (CompareResult, error) {
	want, err := os.ReadFile(answerPath)
	if err != nil {
		return CompareResult{}, fmt.Errorf("reading answer: %w", err)
	}
	got, err := os.ReadFile(actualPath)
	if err != nil {
		return CompareResult{}, fmt.Errorf("reading output: %w", err)
	}
	if string(want) == string(got) {
		return CompareResult{Accepted: true}, nil
	}
	return CompareResult{Info: "output differs from answer (strict byte comparison)"}, nil
}

// compareStandard normalizes trailing whitespace on each line and trailing
// blank lines before comparing, the conventional "token/line" judging mode.
func compareStandard(answerPath, actualPath string) (CompareResult, error) {
	want, err := normalizedLines(answerPath)
	if err != nil {
		return CompareResult{}, fmt.Errorf("reading answer: %w", err)
	}
	got, err := normalizedLines(actualPath)
	if err != nil {
		return CompareResult{}, fmt.Errorf("reading output: %w", err)
	}
	if len(want) != len(got) {
		return CompareResult{Info: fmt.Sprintf("line count differs: expected %d, got %d", len(want), len(got))}, nil
	}
	for i := range want {
		if want[i] != got[i] {
			return CompareResult{Info: fmt.Sprintf("first difference at line %d", i+1)}, nil
		}
	}
	return CompareResult{Accepted: true}, nil
}

func normalizedLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// compareSpecial runs a Lua special-judge script against input/expected/
// actual. The script reports its verdict with set_result(ok, info); if it
// calls set_result more than once, the last call wins. Any Lua runtime
// error, or a script that never calls set_result, is reported as an error
// (mapped to System Error by the caller) rather than Wrong Answer.
func compareSpecial(scriptPath, inputPath, answerPath, actualPath string) (CompareResult, error) {
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return CompareResult{}, fmt.Errorf("reading input: %w", err)
	}
	expected, err := os.ReadFile(answerPath)
	if err != nil {
		return CompareResult{}, fmt.Errorf("reading answer: %w", err)
	}
	actual, err := os.ReadFile(actualPath)
	if err != nil {
		return CompareResult{}, fmt.Errorf("reading output: %w", err)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	defer L.Close()

	var result CompareResult
	called := false
	L.SetGlobal("input", lua.LString(input))
	L.SetGlobal("expected", lua.LString(expected))
	L.SetGlobal("actual", lua.LString(actual))
	L.SetGlobal("set_result", L.NewFunction(func(L *lua.LState) int {
		ok := L.ToBool(1)
		info := L.ToString(2)
		result = CompareResult{Accepted: ok, Info: info}
		called = true
		return 0
	}))

	if err := L.DoFile(scriptPath); err != nil {
		return CompareResult{}, fmt.Errorf("running special judge: %w", err)
	}
	if !called {
		return CompareResult{}, fmt.Errorf("special judge script never called set_result")
	}
	return result, nil
}
