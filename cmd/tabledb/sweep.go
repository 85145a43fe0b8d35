package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

type cmdSweep struct {
	Args struct {
		Tables []string `positional-arg-name:"TABLE" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	commands.AddCommand("", "sweep", "Reclaim deleted rows of tables", `
Run a full collection pass over each named table, reclaiming the storage of
every row which was removed or never committed. Collection is otherwise run
in the background of tabledb sessions and applications, and is deferred while
a table is in use.
`, &cmdSweep{})
}

func (cmd *cmdSweep) Execute([]string) error {
	var s = startSession()
	defer s.finish()

	for _, name := range cmd.Args.Tables {
		var m = s.mustOpen(name)
		m.Sweep()

		var n, err = m.Collect()
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"table": name, "reclaimed": n}).Info("swept table")
		fmt.Printf("%s: reclaimed %d rows\n", name, n)
	}
	return nil
}
