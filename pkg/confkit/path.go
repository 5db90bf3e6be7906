package confkit

import (
	"fmt"
	"os"
	"path/filepath"
)

const maxWalk = 8

// ProjectRoot walks up from the working directory to the first directory
// holding go.mod or .git. It falls back to the working directory.
func ProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("confkit: getwd: %w", err)
	}
	dir := wd
	for i := 0; i < maxWalk; i++ {
		if isModuleRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return wd, nil
}

// ProjectPath joins the project root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

func isModuleRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}
