package buildinfo

import "fmt"

// Build information is injected via -ldflags at build time.
var Version string
var Date string
var Commit string

// Info is the normalised build information of the running binary.
type Info struct {
	Version string
	Date    string
	Commit  string
}

func normalize(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Get возвращает информацию о сборке с подставленными "N/A" для пустых полей.
func Get() Info {
	return Info{
		Version: normalize(Version),
		Date:    normalize(Date),
		Commit:  normalize(Commit),
	}
}

// Print выводит информацию о сборке в stdout.
func Print(version, date, commit string) {
	fmt.Printf("Build version: %s\n", normalize(version))
	fmt.Printf("Build date: %s\n", normalize(date))
	fmt.Printf("Build commit: %s\n", normalize(commit))
}

// PrintSelf выводит информацию из пакетных переменных Version/Date/Commit.
func PrintSelf() {
	Print(Version, Date, Commit)
}
