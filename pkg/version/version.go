// Package version holds the build-time identity ssf reports via its
// `--version`/`--legal` flags, mirroring the teacher's own pkg/mutagen in
// miniature.
package version

import "fmt"

const (
	// Major is the current major version.
	Major = 0
	// Minor is the current minor version.
	Minor = 1
	// Patch is the current patch version.
	Patch = 0
)

// String is the "major.minor.patch" version string.
var String string

func init() {
	String = fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}

// LegalNotice is the license/attribution text shown by `ssf legal`.
const LegalNotice = `ssf

Licensed under the terms of the MIT License.


================================================================================
ssf depends on the following third-party software:
================================================================================

Go, the Go standard library, and the golang.org/x/crypto, golang.org/x/sys,
and golang.org/x/term subrepositories.

github.com/pkg/errors, github.com/spf13/cobra, github.com/spf13/pflag,
github.com/fatih/color, github.com/mattn/go-isatty, github.com/mattn/go-colorable,
github.com/google/uuid, github.com/eknkc/basex, github.com/dustin/go-humanize,
github.com/golang/groupcache, gopkg.in/yaml.v3, github.com/joho/godotenv,
github.com/Microsoft/go-winio, github.com/hectane/go-acl,
github.com/mutagen-io/gopass, github.com/inconshreveable/mousetrap.

Each of the above is distributed under the terms of its own license, copies
of which accompany their respective source distributions.
`
