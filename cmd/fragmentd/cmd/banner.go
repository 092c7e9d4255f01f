package cmd

import (
	"fmt"
)

const banner = `
  ______                                     _      _
 |  ____|                                   | |    | |
 | |__ _ __ __ _  __ _ _ __ ___   ___ _ __ | |_ __| |
 |  __| '__/ _` + "`" + ` |/ _` + "`" + ` | '_ ` + "`" + ` _ \ / _ \ '_ \| __/ _` + "`" + ` |
 | |  | | | (_| | (_| | | | | | |  __/ | | | || (_| |
 |_|  |_|  \__,_|\__, |_| |_| |_|\___|_| |_|\__\__,_|
                  __/ |
                 |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Shared Data-Fragment Service - Version %s\x1b[0m\n\n", Version)
}
