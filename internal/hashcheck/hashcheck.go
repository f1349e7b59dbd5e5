// Package hashcheck implements content-addressed incremental build
// tracking: for a set of input and output files plus a "flags hash" (a
// checksum of everything about the rule that isn't a file — compiler
// flags, command line, etc.), it decides whether a previous build's
// recorded hashes are still valid, using mtime as a fast path and falling
// back to a full content hash only when mtime has changed. Grounded
// directly on hash_checker.cpp.
package hashcheck

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const readBufSize = 2048

// FileHash is one file's recorded content hash and the mtime it was
// recorded at, so a later run can skip rehashing when mtime is unchanged.
type FileHash struct {
	Name  string    `yaml:"name"`
	Hash  string    `yaml:"hash"`
	Mtime time.Time `yaml:"mtime"`
}

// TaskHash is the full persisted record for one rule: its input and output
// file hashes plus the checksum of its non-file inputs (flags, command).
type TaskHash struct {
	Inputs    []FileHash `yaml:"inputs"`
	Outputs   []FileHash `yaml:"outputs"`
	FlagsHash string     `yaml:"flags_hash"`
}

func hashFile(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, readBufSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StringChecksum hashes a string, used for the non-file "flags" key (the
// concatenation of a rule's compiler/linker flags and command line).
func StringChecksum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func readTaskHash(filename string) (TaskHash, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return TaskHash{}, err
	}
	var h TaskHash
	if err := yaml.Unmarshal(data, &h); err != nil {
		return TaskHash{}, err
	}
	return h, nil
}

func writeTaskHash(filename string, h TaskHash) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// computeHashes hashes every file in the order given, in parallel, via
// errgroup — files with no readable content (already deleted, e.g. a gen
// rule output that was never produced) get an empty hash rather than
// failing the whole computation, matching the original's `value_or("")`.
func computeHashes(files []string) []FileHash {
	out := make([]FileHash, len(files))
	var g errgroup.Group
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			hash, _ := hashFile(name)
			mtime := time.Time{}
			if info, err := os.Stat(name); err == nil {
				mtime = info.ModTime()
			}
			out[i] = FileHash{Name: name, Hash: hash, Mtime: mtime}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// didAnyFileChangeOrUpdateTimestamps reports whether files diverges from
// existingHashes. As a side effect, it refreshes the recorded mtime for any
// cached entry whose mtime moved but whose content hash did not, so the
// next check can again take the fast mtime-only path.
func didAnyFileChangeOrUpdateTimestamps(existingHashes []FileHash, files []string) bool {
	if len(existingHashes) != len(files) {
		return true
	}
	fileSet := make(map[string]bool, len(files))
	for _, f := range files {
		fileSet[f] = true
	}

	for i := range existingHashes {
		cached := &existingHashes[i]
		if !fileSet[cached.Name] {
			return true
		}

		info, err := os.Stat(cached.Name)
		if err != nil {
			return true
		}
		if cached.Mtime.Equal(info.ModTime()) {
			continue
		}

		hash, err := hashFile(cached.Name)
		if err != nil {
			return true
		}
		if hash != cached.Hash {
			return true
		}

		cached.Mtime = info.ModTime()
	}
	return false
}

// Checker decides whether a rule's prior build outputs are still valid and
// persists a fresh hash record once the rule has (re)run.
type Checker struct {
	hashFilename  string
	inputs        []string
	outputs       []string
	flagsHash     string
	logger        hclog.Logger
	upToDateCache *TaskHash
}

// New creates a Checker for one rule. nonFileInputsKey should summarize
// everything about the rule that affects its output but isn't a file — its
// compiler flags, command line, profile name, and so on.
func New(logger hclog.Logger, hashFilename string, inputs, outputs []string, nonFileInputsKey string) *Checker {
	return &Checker{
		hashFilename: hashFilename,
		inputs:       inputs,
		outputs:      outputs,
		flagsHash:    StringChecksum(nonFileInputsKey),
		logger:       logger,
	}
}

// IsUpToDate reports whether the rule's previous outputs remain valid: the
// flags hash must match, and neither the input nor output file sets may
// have changed content since the last recorded run.
func (c *Checker) IsUpToDate() bool {
	cached, err := readTaskHash(c.hashFilename)
	if err != nil {
		return false
	}
	if cached.FlagsHash != c.flagsHash {
		return false
	}
	if didAnyFileChangeOrUpdateTimestamps(cached.Inputs, c.inputs) {
		return false
	}
	if didAnyFileChangeOrUpdateTimestamps(cached.Outputs, c.outputs) {
		return false
	}
	c.upToDateCache = &cached
	return true
}

// WriteUpdatedHashes persists the current hash record: the cached record
// verbatim if IsUpToDate found it still valid (avoiding a redundant
// rehash), or freshly computed hashes of every input and output otherwise.
func (c *Checker) WriteUpdatedHashes() {
	var h TaskHash
	if c.upToDateCache != nil {
		h = *c.upToDateCache
	} else {
		h = TaskHash{
			Inputs:    computeHashes(c.inputs),
			Outputs:   computeHashes(c.outputs),
			FlagsHash: c.flagsHash,
		}
	}
	if err := writeTaskHash(c.hashFilename, h); err != nil {
		c.logger.Warn("failed to write hash cache", "file", c.hashFilename, "error", errors.Wrap(err, "write"))
	}
}
