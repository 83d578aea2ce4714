package credential

import (
	"sort"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizdesk/core"
	appfs "github.com/trezcool/quizdesk/fs"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestResetPassword_Validate(t *testing.T) {
	validate := newValidator()
	cred := Credential{Username: "jdoe2024", DisplayName: "Jane Doe"}

	tests := []struct {
		name    string
		pwd     string
		confirm string
		wantTag string
	}{
		{name: "ok", pwd: "k9Lm#qrZ", confirm: "k9Lm#qrZ"},
		{name: "unicode letters", pwd: "日本語パス1234", confirm: "日本語パス1234"},
		{name: "missing", wantTag: "required"},
		{name: "too short", pwd: "ab1", confirm: "ab1", wantTag: pwdMinLenTag},
		{name: "longest", pwd: strings.Repeat("k9Lm#qrZ", 9), confirm: strings.Repeat("k9Lm#qrZ", 9)},
		{name: "too long", pwd: strings.Repeat("k9Lm#qrZ", 9) + "x", confirm: strings.Repeat("k9Lm#qrZ", 9) + "x", wantTag: pwdMaxLenTag},
		{name: "too long in bytes", pwd: strings.Repeat("日本語パス1", 5), confirm: strings.Repeat("日本語パス1", 5), wantTag: pwdMaxLenTag},
		{name: "whitespace", pwd: "ab12 cd34", confirm: "ab12 cd34", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", confirm: "12345678", wantTag: pwdNotAllNumTag},
		{name: "no digit", pwd: "abcdefgh", confirm: "abcdefgh", wantTag: pwdComplexityTag},
		{name: "no letter", pwd: "1234-5678", confirm: "1234-5678", wantTag: pwdComplexityTag},
		{name: "like username", pwd: "JDoe2024x", confirm: "JDoe2024x", wantTag: pwdAttrSimTag},
		{name: "like display name", pwd: "janedoe1", confirm: "janedoe1", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "Password1", confirm: "Password1", wantTag: pwdNoCommonTag},
		{name: "confirm mismatch", pwd: "k9Lm#qrZ", confirm: "k9Lm#qrY", wantTag: "eqfield"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp := ResetPassword{Password: tt.pwd, PasswordConfirm: tt.confirm}
			err := rp.Validate(validate, cred)
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if !ok || len(verrs) == 0 {
				t.Fatalf("Validate() error = %v, want tag %s", err, tt.wantTag)
			}
			var found bool
			for _, fe := range verrs {
				found = found || fe.Tag() == tt.wantTag
			}
			if !found {
				t.Errorf("Validate() error = %v, want tag %s", err, tt.wantTag)
			}
		})
	}
}

func TestChangePassword_Validate_reused(t *testing.T) {
	validate := newValidator()
	cp := ChangePassword{CurrentPassword: "k9Lm#qrZ", Password: "k9Lm#qrZ", PasswordConfirm: "k9Lm#qrZ"}

	err := cp.Validate(validate, Credential{Username: "jdoe2024"})
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) != 1 || verrs[0].Tag() != pwdReusedTag {
		t.Errorf("Validate() error = %v, want tag %s", err, pwdReusedTag)
	}
}

func Test_loadCommonPasswords(t *testing.T) {
	newValidator()
	if len(commonPasswords) == 0 {
		t.Fatal("common passwords list not loaded")
	}
	if !sort.StringsAreSorted(commonPasswords) {
		t.Error("common passwords list is not sorted")
	}
	if !isCommonPassword("qwerty123") {
		t.Error("isCommonPassword(qwerty123) = false")
	}
	if isCommonPassword("k9lm#qrz") {
		t.Error("isCommonPassword(k9lm#qrz) = true")
	}
	if pwds := loadCommonPasswords(appfs.FS, "assets/nope.txt.gz"); pwds != nil {
		t.Errorf("loadCommonPasswords(missing) = %v, want nil", pwds)
	}
}
