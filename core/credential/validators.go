package credential

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/quizdesk/core"
	appfs "github.com/trezcool/quizdesk/fs"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdMaxLen     = 72 // bcrypt input limit, in bytes
	pwdMaxLenTag  = "pwdmaxlen"
	pwdMaxLenText = fmt.Sprintf("password cannot be longer than %d bytes", pwdMaxLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 letter and 1 digit"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to the username or display name"

	pwdReusedTag  = "pwdreused"
	pwdReusedText = "new password must be different from the current one"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"
	commonPasswords []string
	loadCommonOnce  sync.Once
)

// loadCommonPasswords reads the sorted, gzipped list shipped in the embedded assets.
// A missing or corrupt asset leaves the list empty.
func loadCommonPasswords(fsys fs.FS, path string) []string {
	file, err := fsys.Open(path)
	if err != nil {
		return nil
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		return nil
	}
	//goland:noinspection GoUnhandledErrorResult
	defer gzRdr.Close()

	var pwds []string
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, pwd)
		}
	}
	sort.Strings(pwds)
	return pwds
}

func isCommonPassword(lpwd string) bool {
	idx := sort.SearchStrings(commonPasswords, lpwd)
	return idx < len(commonPasswords) && commonPasswords[idx] == lpwd
}

// InitValidators registers the credential validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	loadCommonOnce.Do(func() {
		commonPasswords = loadCommonPasswords(appfs.FS, appfs.CommonPasswordsFile)
	})

	validate.RegisterStructValidation(credentialStructValidation, NewCredential{}, ChangePassword{}, ResetPassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdMaxLenTag, pwdMaxLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdReusedTag, pwdReusedText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

// credentialStructValidation applies the password policy to the structs carrying a new password.
func credentialStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewCredential:
		validatePassword(v.Password, sl, v.Username, v.DisplayName)
	case ChangePassword:
		if v.Password != "" && v.Password == v.CurrentPassword {
			sl.ReportError(v.Password, "password", "Password", pwdReusedTag, "")
			return
		}
		validatePassword(v.Password, sl, v.username, v.displayName)
	case ResetPassword:
		validatePassword(v.Password, sl, v.username, v.displayName)
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - maxLen: 72 bytes
// - no whitespace
// - not all numeric
// - complexity: 1 letter, 1 digit
// - no similarity with the credential attributes
// - not a common password
func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	if pwd == "" {
		return // reported by `required`
	}
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	if len([]rune(pwd)) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	if len(pwd) > pwdMaxLen {
		reportErr(pwdMaxLenTag)
		return
	}

	var digitCount, letterCount, total int
	for _, char := range pwd {
		total++
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if unicode.IsLetter(char) {
			letterCount++
		}
	}

	if digitCount == total {
		reportErr(pwdNotAllNumTag)
		return
	}
	if digitCount == 0 || letterCount == 0 {
		reportErr(pwdComplexityTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}

	if isCommonPassword(lpwd) {
		reportErr(pwdNoCommonTag)
	}
}
