package utils

import (
	"errors"
	"testing"
)

func TestRetryN(t *testing.T) {
	calls := 0
	err := RetryN(2, 3, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("success should not be retried: %d (%v)", calls, err)
	}

	Testing = true
	defer func() { Testing = false }()
	boom := errors.New("boom")
	calls = 0
	err = RetryN(2, 3, func() error {
		calls++
		return boom
	})
	// Testing置位时失败不等待、不重试
	if err != boom || calls != 1 {
		t.Fatalf("testing mode should fail fast: %d (%v)", calls, err)
	}
	if err = Retry(func() error { return nil }); err != nil {
		t.Fatal(err)
	}
}

func TestRetryNLastError(t *testing.T) {
	calls := 0
	first := errors.New("first")
	last := errors.New("last")
	// base为0时退避等待为0秒，可验证完整的重试轮数
	err := RetryN(0, 2, func() error {
		calls++
		if calls == 1 {
			return first
		}
		return last
	})
	if err != last || calls != 2 {
		t.Fatalf("expected last error after 2 attempts: %d (%v)", calls, err)
	}
}
