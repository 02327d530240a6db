package buildinfo

// Set via -ldflags at release build time.
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    return map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
        "solver":  "highs",
    }
}
