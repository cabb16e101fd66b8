package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultFigureLimit = 10000

// NextSequentialPath returns the first dir/prefix_<n>.ext, n counting from 1,
// that does not exist yet.
func NextSequentialPath(dir, prefix, ext string, limit int) (string, error) {
	if limit <= 0 {
		limit = defaultFigureLimit
	}
	ext = strings.TrimPrefix(ext, ".")
	for n := 1; n <= limit; n++ {
		path := filepath.Join(dir, prefix+"_"+strconv.Itoa(n)+"."+ext)
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free %s_<n>.%s name in %s after %d attempts", prefix, ext, dir, limit)
}
