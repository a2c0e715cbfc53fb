package cli

var (
	PrintRun       = printRun
	GetIndexConfig = getIndexConfig
)
