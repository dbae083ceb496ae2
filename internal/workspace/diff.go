package workspace

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ApplyDiff patches an existing text file with a unified diff, flowing
// through the same validation, content check, confirmation and backup
// path as a plain write.
func (m *Manager) ApplyDiff(ctx context.Context, path, diffText string, opts MutateOptions) (bool, error) {
	canon, err := m.validator.Validate(path)
	if err != nil {
		return false, err
	}

	info, err := m.fsys.Stat(ctx, canon)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return false, err
	}
	if info.IsDir {
		return false, fmt.Errorf("%w: %s", ErrIsADirectory, path)
	}

	current, err := m.fsys.ReadFile(ctx, canon)
	if err != nil {
		return false, err
	}
	if isLikelyBinaryFile(canon, current) {
		return false, fmt.Errorf("cannot apply a diff to binary file %s", path)
	}

	patched, err := applyUnifiedDiff(string(current), diffText)
	if err != nil {
		return false, fmt.Errorf("failed to apply diff to %s: %w", path, err)
	}

	return m.WriteFile(ctx, canon, []byte(patched), WriteOptions{Confirm: opts.Confirm})
}

// applyUnifiedDiff applies a unified diff to content. Minimal file
// headers are synthesized when the diff starts at a hunk marker.
func applyUnifiedDiff(original, diffText string) (string, error) {
	if !strings.HasPrefix(diffText, "---") && !strings.HasPrefix(diffText, "diff ") {
		diffText = "--- a/file\n+++ b/file\n" + diffText
	}

	fileDiff, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("failed to parse unified diff: %w", err)
	}

	originalLines := strings.Split(original, "\n")
	result := make([]string, 0, len(originalLines))
	currentOrigLine := 0

	for _, hunk := range fileDiff.Hunks {
		hunkStartLine := int(hunk.OrigStartLine) - 1
		for currentOrigLine < hunkStartLine && currentOrigLine < len(originalLines) {
			result = append(result, originalLines[currentOrigLine])
			currentOrigLine++
		}

		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if len(line) == 0 {
				continue
			}

			switch line[0] {
			case ' ': // Context line - copy from original
				if currentOrigLine < len(originalLines) {
					result = append(result, originalLines[currentOrigLine])
					currentOrigLine++
				}
			case '-': // Deleted line - skip in original
				if currentOrigLine < len(originalLines) {
					currentOrigLine++
				}
			case '+': // Added line - add to result
				result = append(result, line[1:])
			}
		}
	}

	for currentOrigLine < len(originalLines) {
		result = append(result, originalLines[currentOrigLine])
		currentOrigLine++
	}

	return strings.Join(result, "\n"), nil
}
