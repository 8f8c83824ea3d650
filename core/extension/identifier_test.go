package extension

import (
	"errors"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"a/a.php", "b.php", "vendor-name/plugin.php"}
	for _, id := range valid {
		if err := ValidateIdentifier(id); err != nil {
			t.Fatalf("expected %q valid: %v", id, err)
		}
	}

	invalid := []string{
		"",
		"/etc/passwd.php",
		"../escape.php",
		"a/../b.php",
		"a/./b.php",
		"a//b.php",
		"a\\b.php",
		"a/a.txt",
		"a/a.php/",
	}
	for _, id := range invalid {
		err := ValidateIdentifier(id)
		if err == nil {
			t.Fatalf("expected %q invalid", id)
		}
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("expected ErrInvalidIdentifier for %q, got %v", id, err)
		}
	}
}
