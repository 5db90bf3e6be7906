package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads a .env file into the process environment the first
// time it is called.
//
//	NO_DOTENV=1        skip loading entirely
//	ENV_FILE=path      load exactly this file
//	DOTENV_OVERLOAD=1  let the file override variables already set
//
// Without ENV_FILE the nearest .env between the working directory and the
// module root is used.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = findDotenv()
	}
	if path == "" {
		return
	}
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		_ = godotenv.Overload(path)
		return
	}
	_ = godotenv.Load(path)
}

func findDotenv() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxWalk; i++ {
		candidate := filepath.Join(dir, ".env")
		if fileExists(candidate) {
			return candidate
		}
		if isModuleRoot(dir) {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	return ""
}
