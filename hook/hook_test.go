package hook

import "testing"

func TestRunEmptyScriptIsNoop(t *testing.T) {
	if err := Run("", "1.0", ""); err != nil {
		t.Errorf("empty script should be a no-op, got %v", err)
	}
}

func TestRunReceivesArguments(t *testing.T) {
	err := Run(`[ "$0" = "1.0" ] && [ "$1" = "2.0" ]`, "1.0", "2.0")
	if err != nil {
		t.Errorf("expected success, got %v", err)
	}
}

func TestRunFailsOnNonZeroExit(t *testing.T) {
	if err := Run("exit 1", "", ""); err == nil {
		t.Error("expected error for non-zero exit")
	}
}
