package copier

import "testing"

func TestParamNames_Deterministic(t *testing.T) {
	cols := []string{"UserId", "Order Date", "e-mail"}
	first := ParamNames(cols)
	second := ParamNames(cols)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("ParamNames is not deterministic: %v vs %v", first, second)
		}
	}
}

func TestParamNames_SanitizesInvalidCharacters(t *testing.T) {
	got := ParamNames([]string{"Order Date", "e-mail"})
	want := []string{"@Order_Date", "@e_mail"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParamNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParamNames_ResolvesCollisions(t *testing.T) {
	got := ParamNames([]string{"a-b", "a.b", "a_b"})
	want := []string{"@a_b", "@a_b_", "@a_b__"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParamNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
