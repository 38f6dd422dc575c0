// Package problemimport parses an admin-uploaded zip problem package into a
// model.Problem, writing its test-case files to disk where the sandbox
// runner expects to find them. Adapted from the teacher's archive-import
// feature: same size/entry/path guards, same problem.yaml-plus-data-files
// layout, generalized from the teacher's DB problem schema to this judge's
// Problem/ProblemCase shape.
package problemimport

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"oj/internal/model"
)

const (
	maxArchiveEntries   = 200
	maxArchiveTotalSize = 32 * 1024 * 1024
	maxArchiveFileSize  = 4 * 1024 * 1024
)

type problemDoc struct {
	Name             string    `yaml:"name"`
	Kind             string    `yaml:"kind"`
	SpecialJudgePath string    `yaml:"special_judge_path"`
	Cases            []caseDoc `yaml:"cases"`
}

type caseDoc struct {
	Name             string  `yaml:"name"`
	Score            float64 `yaml:"score"`
	TimeLimitUs      uint64  `yaml:"time_limit_us"`
	MemoryLimitBytes uint64  `yaml:"memory_limit_bytes"`
}

// Parse validates data as a zip problem package and materializes its test
// cases (and special-judge script, if any) under destDir, returning the
// resulting Problem with InputPath/AnswerPath/SpecialJudgePath pointing at
// the written files. destDir is created if it does not exist.
func Parse(data []byte, destDir string) (model.Problem, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{'P', 'K', 0x03, 0x04}) {
		return model.Problem{}, errors.New("problemimport: archive must be a zip file")
	}

	files, err := collectFromZip(data)
	if err != nil {
		return model.Problem{}, err
	}

	rawYAML, ok := files["problem.yaml"]
	if !ok {
		return model.Problem{}, errors.New("problemimport: problem.yaml not found in archive")
	}
	var doc problemDoc
	if err := yaml.Unmarshal(rawYAML, &doc); err != nil {
		return model.Problem{}, fmt.Errorf("problemimport: parsing problem.yaml: %w", err)
	}
	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		return model.Problem{}, errors.New("problemimport: name is required")
	}

	kind, err := parseKind(doc.Kind)
	if err != nil {
		return model.Problem{}, err
	}
	if len(doc.Cases) == 0 {
		return model.Problem{}, errors.New("problemimport: at least one case is required")
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return model.Problem{}, fmt.Errorf("problemimport: creating destination dir: %w", err)
	}

	problem := model.Problem{Name: doc.Name, Kind: kind}
	for _, cd := range doc.Cases {
		name := strings.TrimSpace(cd.Name)
		if name == "" {
			return model.Problem{}, errors.New("problemimport: a case is missing its name")
		}
		in, ok := files["data/"+name+".in"]
		if !ok {
			return model.Problem{}, fmt.Errorf("problemimport: missing data/%s.in", name)
		}
		out, ok := files["data/"+name+".out"]
		if !ok {
			return model.Problem{}, fmt.Errorf("problemimport: missing data/%s.out", name)
		}
		inPath := filepath.Join(destDir, name+".in")
		outPath := filepath.Join(destDir, name+".out")
		if err := os.WriteFile(inPath, in, 0o644); err != nil {
			return model.Problem{}, fmt.Errorf("problemimport: writing %s: %w", inPath, err)
		}
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return model.Problem{}, fmt.Errorf("problemimport: writing %s: %w", outPath, err)
		}
		problem.Cases = append(problem.Cases, model.ProblemCase{
			Score:            cd.Score,
			InputPath:        inPath,
			AnswerPath:       outPath,
			TimeLimitUs:      cd.TimeLimitUs,
			MemoryLimitBytes: cd.MemoryLimitBytes,
		})
	}

	if kind == model.CheckerSpecial {
		script, ok := files[doc.SpecialJudgePath]
		if !ok {
			return model.Problem{}, fmt.Errorf("problemimport: special judge kind requires special_judge_path %q in the archive", doc.SpecialJudgePath)
		}
		scriptPath := filepath.Join(destDir, "judge.lua")
		if err := os.WriteFile(scriptPath, script, 0o644); err != nil {
			return model.Problem{}, fmt.Errorf("problemimport: writing %s: %w", scriptPath, err)
		}
		problem.SpecialJudgePath = scriptPath
	}

	return problem, nil
}

func parseKind(s string) (model.CheckerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return model.CheckerStandard, nil
	case "strict":
		return model.CheckerStrict, nil
	case "special":
		return model.CheckerSpecial, nil
	default:
		return 0, fmt.Errorf("problemimport: unknown kind %q", s)
	}
}

// collectFromZip reads zip entries into a flat name->content map, enforcing
// entry count, per-file size, and path-traversal guards.
func collectFromZip(data []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("problemimport: opening zip: %w", err)
	}
	if len(reader.File) > maxArchiveEntries {
		return nil, fmt.Errorf("problemimport: archive has too many entries (limit %d)", maxArchiveEntries)
	}

	files := make(map[string][]byte, len(reader.File))
	var total int64
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizeArchivePath(f.Name)
		if strings.HasPrefix(name, "/") || strings.Contains(name, "../") {
			return nil, fmt.Errorf("problemimport: invalid path in archive: %s", f.Name)
		}
		if f.UncompressedSize64 > maxArchiveFileSize {
			return nil, fmt.Errorf("problemimport: %s exceeds the %d byte limit", f.Name, maxArchiveFileSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("problemimport: opening %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveFileSize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("problemimport: reading %s: %w", f.Name, err)
		}
		if int64(len(content)) > maxArchiveFileSize {
			return nil, fmt.Errorf("problemimport: %s exceeds the %d byte limit", f.Name, maxArchiveFileSize)
		}
		total += int64(len(content))
		if total > maxArchiveTotalSize {
			return nil, fmt.Errorf("problemimport: archive exceeds the %d byte uncompressed limit", maxArchiveTotalSize)
		}
		files[name] = content
	}
	return files, nil
}

func normalizeArchivePath(p string) string {
	cleaned := filepath.ToSlash(p)
	cleaned = strings.TrimPrefix(cleaned, "./")
	return strings.TrimPrefix(cleaned, "/")
}
