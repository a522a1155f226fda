package util

import (
	"os"
	"strings"
)

// WriteLines writes the given lines to savePath, one per line,
// truncating any existing file
func WriteLines(savePath string, lines ...string) error {
	return os.WriteFile(savePath, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

// AppendLines appends the given lines to savePath, creating it if needed
func AppendLines(savePath string, lines ...string) error {
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, l := range lines {
		if _, err = f.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return nil
}
