package util

import (
	"bytes"
	"os"
	"path"
	"testing"

	"github.com/hewudi666/maro/types"
)

func TestPolicyStateRoundTrip(t *testing.T) {
	dir := path.Join(t.TempDir(), "checkpoints")
	state := types.PolicyState(`{"q_table":{"0.000,0.000":[0.1,0.2]}}`)

	if err := SavePolicyState(dir, "POLICY.0", state); err != nil {
		t.Fatalf("save failed: %s", err)
	}
	got, err := LoadPolicyState(dir, "POLICY.0")
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}
	if !bytes.Equal(got, state) {
		t.Errorf("loaded state does not match saved state: %s", got)
	}
}

func TestLoadMissingPolicyState(t *testing.T) {
	_, err := LoadPolicyState(t.TempDir(), "POLICY.404")
	if err == nil {
		t.Fatalf("expected an error for a missing checkpoint")
	}
	if !os.IsNotExist(err) {
		t.Errorf("missing checkpoint should be reported via os.IsNotExist, got: %s", err)
	}
}

func TestWriteAndAppendLines(t *testing.T) {
	file := path.Join(t.TempDir(), "rewards.csv")
	if err := WriteLines(file, "episode,reward", "0,1.0"); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	if err := AppendLines(file, "1,0.5"); err != nil {
		t.Fatalf("append failed: %s", err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read back failed: %s", err)
	}
	want := "episode,reward\n0,1.0\n1,0.5\n"
	if string(data) != want {
		t.Errorf("unexpected file contents: %q", string(data))
	}
}
