//go:build linux

package drive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// removableParents are the mount trees desktop automounters and users put
// removable media under.
var removableParents = []string{"/media/", "/run/media/", "/mnt/"}

// MountParents returns the directories that gain a child when a drive is
// mounted. The watcher observes these.
func MountParents() []string {
	var out []string
	for _, p := range removableParents {
		out = append(out, strings.TrimSuffix(p, "/"))
	}
	if user := os.Getenv("USER"); user != "" {
		out = append(out, "/media/"+user, "/run/media/"+user)
	}
	return out
}

// List returns mounted filesystems under the removable mount trees.
func List() ([]string, error) {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	defer f.Close()
	return parseMounts(f)
}

func parseMounts(r io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	var roots []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		mnt := unescapeMount(fields[1])
		if !underRemovableParent(mnt) || seen[mnt] {
			continue
		}
		seen[mnt] = true
		roots = append(roots, mnt)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parsing mount table: %w", err)
	}
	sort.Strings(roots)
	return roots, nil
}

func underRemovableParent(mnt string) bool {
	for _, p := range removableParents {
		if strings.HasPrefix(mnt, p) && len(mnt) > len(p) {
			return true
		}
	}
	return false
}

// unescapeMount decodes the octal escapes (\040 for space) used in the
// kernel mount table.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
