package extract

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Identity is the naming information carried by a packed file's name.
type Identity struct {
	Base string // file name without packed extension or hint suffix
	Hint string // lowercase legacy format hint, e.g. "tga"; may be empty
}

// ParseIdentity splits a trailing "_ext" hint (2-4 letters or digits) off
// the file name. The hint is informational only.
func ParseIdentity(path string) Identity {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	under := strings.LastIndexByte(name, '_')
	if under <= 0 || under >= len(name)-1 {
		return Identity{Base: name}
	}
	suffix := name[under+1:]
	n := len([]rune(suffix))
	if n < 2 || n > 4 || !alnum(suffix) {
		return Identity{Base: name}
	}
	return Identity{Base: name[:under], Hint: strings.ToLower(suffix)}
}

func alnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Decision is the resolved output naming for one decoded payload.
type Decision struct {
	RealExt  string // content-detected, with dot
	FinalExt string // user format if given, else RealExt
	Convert  bool   // user format given and differs from RealExt
}

// Decide combines the content-detected extension with an optional
// user-requested format. The filename hint never takes part.
func Decide(realExt, userFormat string) Decision {
	d := Decision{RealExt: realExt, FinalExt: realExt}
	userFormat = strings.TrimPrefix(strings.TrimSpace(userFormat), ".")
	if userFormat == "" {
		return d
	}
	d.FinalExt = "." + strings.ToLower(userFormat)
	d.Convert = !strings.EqualFold(d.FinalExt, realExt)
	return d
}
