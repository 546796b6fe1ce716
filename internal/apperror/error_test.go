package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew_UsesRegisteredMessage(t *testing.T) {
	err := New(CodeNoRoute, WithContext("WETH-USDC"))
	if err.Message != messages[CodeNoRoute] {
		t.Errorf("unexpected message %q", err.Message)
	}
	if !strings.Contains(err.Error(), "WETH-USDC") {
		t.Errorf("context missing from %q", err.Error())
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("estimate: %w", New(CodeNoRoute, WithContext("pair")))
	if !errors.Is(err, Sentinel(CodeNoRoute)) {
		t.Error("expected errors.Is to match on code")
	}
	if errors.Is(err, Sentinel(CodeReserveFetchFailed)) {
		t.Error("different codes must not match")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, CodeInternalError, "x") != nil {
		t.Fatal("wrapping nil must return nil")
	}

	cause := errors.New("dial tcp: refused")
	wrapped := Wrap(cause, CodeEthereumRPCError, "suggest gas price")
	if !errors.Is(wrapped, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if GetCode(wrapped) != CodeEthereumRPCError {
		t.Errorf("unexpected code %s", GetCode(wrapped))
	}

	original := New(CodeSubmissionFailed)
	if Wrap(original, CodeInternalError, "ctx") != original {
		t.Error("existing AppError should be returned as-is")
	}
}

func TestGetCode_Unknown(t *testing.T) {
	if GetCode(errors.New("plain")) != CodeUnknownError {
		t.Error("plain errors map to UNKNOWN_ERROR")
	}
}
