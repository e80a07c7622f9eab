package npm

import (
	"strings"

	"github.com/ije/gox/utils"
	"github.com/ije/gox/valid"
)

var (
	naming = valid.Validator{valid.Range{'a', 'z'}, valid.Range{'A', 'Z'}, valid.Range{'0', '9'}, valid.Eq('_'), valid.Eq('.'), valid.Eq('-'), valid.Eq('+'), valid.Eq('$'), valid.Eq('!')}
)

// ValidatePackageName validates the package name.
// based on https://github.com/npm/validate-npm-package-name
func ValidatePackageName(pkgName string) bool {
	if l := len(pkgName); l == 0 || l > 214 {
		return false
	}
	if strings.HasPrefix(pkgName, "@") {
		scope, name := utils.SplitByFirstByte(pkgName, '/')
		return naming.Match(scope[1:]) && naming.Match(name)
	}
	return naming.Match(pkgName)
}
