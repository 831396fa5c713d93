package scan

import (
	"path/filepath"
	"strings"

	"github.com/franz/file-curator/internal/metrics"
)

// extensionCategories maps lowercase extensions to the quality category they are assessed under
var extensionCategories = map[string]metrics.Category{}

func init() {
	register := func(c metrics.Category, exts ...string) {
		for _, ext := range exts {
			extensionCategories[ext] = c
		}
	}

	register(metrics.CategoryCode,
		".go", ".py", ".js", ".mjs", ".ts", ".tsx", ".jsx", ".java", ".kt", ".scala",
		".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".rs", ".rb", ".php", ".swift",
		".sh", ".bash", ".sql", ".lua", ".pl", ".r", ".m", ".dart", ".ex", ".exs",
	)
	register(metrics.CategoryDocument,
		".txt", ".md", ".rst", ".pdf", ".doc", ".docx", ".odt", ".rtf", ".tex",
		".csv", ".xls", ".xlsx", ".ods", ".ppt", ".pptx", ".odp", ".epub", ".html", ".htm",
	)
	register(metrics.CategoryImage,
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".svg",
		".heic", ".heif", ".raw", ".cr2", ".nef", ".arw", ".dng", ".psd",
	)
	register(metrics.CategoryVideo,
		".mp4", ".m4v", ".mov", ".mkv", ".avi", ".wmv", ".flv", ".webm", ".mpg", ".mpeg", ".3gp",
	)
}

// CategoryFor returns the category for an extension (with or without the dot,
// any case). Unknown extensions are "other".
func CategoryFor(ext string) metrics.Category {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if c, ok := extensionCategories[ext]; ok {
		return c
	}
	return metrics.CategoryOther
}

// CategoryForPath returns the category for a file path
func CategoryForPath(path string) metrics.Category {
	return CategoryFor(filepath.Ext(path))
}
