package util

import (
	"fmt"
	"os"
	"path"

	"github.com/hewudi666/maro/types"
)

// SavePolicyState writes a policy's serialized state to
// <dir>/<name>.state, creating the directory if needed.
func SavePolicyState(dir, name string, state types.PolicyState) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("creating checkpoint dir %s: %w", dir, err)
	}
	return os.WriteFile(statePath(dir, name), state, 0644)
}

// LoadPolicyState reads a policy's serialized state back from disk. A
// missing file is reported through os.IsNotExist on the returned error;
// callers treat that as a warning, not a failure.
func LoadPolicyState(dir, name string) (types.PolicyState, error) {
	data, err := os.ReadFile(statePath(dir, name))
	if err != nil {
		return nil, err
	}
	return types.PolicyState(data), nil
}

func statePath(dir, name string) string {
	return path.Join(dir, name+".state")
}
