package stove

import "testing"

func TestParseKeyValueBody(t *testing.T) {
	resp := Parse(1002, "estado=7\r\non_off=1\nconsigna_temperatura=21.5\n\ntemperatura = 20.8\n")

	if !resp.StatusOK {
		t.Error("body without an error code should be OK")
	}
	if resp.ErrorCode != nil {
		t.Errorf("expected nil error code, got %d", *resp.ErrorCode)
	}
	if got := resp.Params["estado"]; got != "7" {
		t.Errorf("estado: expected 7, got %q", got)
	}
	if got := resp.Params["temperatura"]; got != "20.8" {
		t.Errorf("whitespace around '=' should be trimmed, got %q", got)
	}
	if len(resp.Lines) != 4 {
		t.Errorf("expected 4 non-empty lines, got %d: %v", len(resp.Lines), resp.Lines)
	}
	if resp.Op != 1002 {
		t.Errorf("expected op 1002, got %d", resp.Op)
	}
}

func TestParseErrorKeyPriority(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantCode int
		wantOK   bool
	}{
		{"error wins over code", "code=2\nerror=0\n", 0, true},
		{"codigo recognized", "codigo=7\n", 7, false},
		{"result recognized", "result=1\n", 1, false},
		{"zero code is success", "error=0\n", 0, true},
		{"nonzero code is failure", "error=3\n", 3, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := Parse(1013, tc.body)
			if resp.ErrorCode == nil {
				t.Fatal("expected an error code")
			}
			if *resp.ErrorCode != tc.wantCode {
				t.Errorf("expected code %d, got %d", tc.wantCode, *resp.ErrorCode)
			}
			if resp.StatusOK != tc.wantOK {
				t.Errorf("expected StatusOK=%v, got %v", tc.wantOK, resp.StatusOK)
			}
		})
	}
}

func TestParseSkipsNonNumericErrorKeys(t *testing.T) {
	// a higher-priority key with a non-numeric value must not hide a
	// numeric one further down the priority list
	resp := Parse(1013, "error=unavailable\ncode=5\n")

	if resp.ErrorCode == nil || *resp.ErrorCode != 5 {
		t.Fatalf("expected code 5, got %v", resp.ErrorCode)
	}
	if resp.StatusOK {
		t.Error("expected StatusOK=false")
	}
}

func TestParseBareIntegerFallback(t *testing.T) {
	resp := Parse(1013, "0\n")
	if resp.ErrorCode == nil || *resp.ErrorCode != 0 || !resp.StatusOK {
		t.Errorf("bare 0 line should parse as success, got %+v", resp)
	}

	resp = Parse(1013, "-1\n")
	if resp.ErrorCode == nil || *resp.ErrorCode != -1 || resp.StatusOK {
		t.Errorf("bare -1 line should parse as failure, got %+v", resp)
	}

	// key=value lines take priority over a later bare integer
	resp = Parse(1013, "error=0\n4\n")
	if resp.ErrorCode == nil || *resp.ErrorCode != 0 {
		t.Errorf("expected code 0 from error key, got %v", resp.ErrorCode)
	}
}

func TestParseEmptyBody(t *testing.T) {
	resp := Parse(1094, "")
	if !resp.StatusOK {
		t.Error("empty body should be OK")
	}
	if resp.ErrorCode != nil {
		t.Errorf("empty body should carry no code, got %d", *resp.ErrorCode)
	}
	if len(resp.Lines) != 0 || len(resp.Params) != 0 {
		t.Errorf("expected no lines or params, got %+v", resp)
	}
}

func TestParseDuplicateKeysLastWins(t *testing.T) {
	resp := Parse(1002, "estado=1\nestado=7\n")
	if got := resp.Params["estado"]; got != "7" {
		t.Errorf("expected last value to win, got %q", got)
	}
}

func TestIsBareInteger(t *testing.T) {
	for _, s := range []string{"0", "7", "-3", "1234"} {
		if !isBareInteger(s) {
			t.Errorf("%q should be a bare integer", s)
		}
	}
	for _, s := range []string{"", "-", "1.5", "a1", "1a", "estado=7"} {
		if isBareInteger(s) {
			t.Errorf("%q should not be a bare integer", s)
		}
	}
}
