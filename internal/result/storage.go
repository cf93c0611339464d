package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// On-disk layout of a run:
//
//	<base>/runs/<stamp>/evals/<input>/<id>/meta.json
//	<base>/latest -> <base>/runs/<stamp>
const (
	MetaFile   = "meta.json"
	LatestLink = "latest"
)

// CreateRunDir makes a fresh timestamped run directory under base and
// repoints base/latest at it. Runs started within the same second get a
// numeric suffix instead of sharing a directory.
func CreateRunDir(base string) (string, error) {
	runs, err := filepath.Abs(filepath.Join(base, "runs"))
	if err != nil {
		return "", fmt.Errorf("resolving runs dir: %w", err)
	}
	if err := os.MkdirAll(runs, 0o755); err != nil {
		return "", fmt.Errorf("creating runs dir: %w", err)
	}
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runs, stamp)
	for n := 2; ; n++ {
		err := os.Mkdir(runDir, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("creating run dir: %w", err)
		}
		runDir = filepath.Join(runs, stamp+"-"+strconv.Itoa(n))
	}
	if err := pointLatest(base, runDir); err != nil {
		return "", err
	}
	return runDir, nil
}

// pointLatest swaps the latest link with a rename so readers never see it
// missing.
func pointLatest(base, runDir string) error {
	tmp := filepath.Join(base, "."+LatestLink+"-"+filepath.Base(runDir))
	os.Remove(tmp)
	if err := os.Symlink(runDir, tmp); err != nil {
		return fmt.Errorf("creating latest link: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(base, LatestLink)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("updating latest link: %w", err)
	}
	return nil
}

// EvalDir is where one evaluation of input stores its meta file.
func EvalDir(runDir, input, id string) string {
	return filepath.Join(runDir, "evals", input, id)
}

// WriteEvalMeta stores meta as evalDir/meta.json. The file appears
// complete or not at all.
func WriteEvalMeta(evalDir string, meta *EvalMeta) error {
	if err := os.MkdirAll(evalDir, 0o755); err != nil {
		return fmt.Errorf("creating eval dir: %w", err)
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding meta for %s: %w", meta.Input, err)
	}
	f, err := os.CreateTemp(evalDir, ".meta-*.json")
	if err != nil {
		return fmt.Errorf("creating meta: %w", err)
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("writing meta: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("writing meta: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("writing meta: %w", err)
	}
	if err := os.Rename(f.Name(), filepath.Join(evalDir, MetaFile)); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("publishing meta: %w", err)
	}
	return nil
}

func ReadEvalMeta(path string) (*EvalMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading meta: %w", err)
	}
	var meta EvalMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decoding meta %s: %w", path, err)
	}
	return &meta, nil
}

// LoadEvalMetas returns every readable meta file under runDir, ordered by
// path. Unreadable or corrupt files are skipped and reported in skipped.
func LoadEvalMetas(runDir string) (metas []*EvalMeta, skipped []string, err error) {
	err = filepath.WalkDir(runDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != MetaFile {
			return nil
		}
		meta, rerr := ReadEvalMeta(path)
		if rerr != nil {
			skipped = append(skipped, path)
			return nil
		}
		metas = append(metas, meta)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", runDir, err)
	}
	return metas, skipped, nil
}
