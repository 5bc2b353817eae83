// Command ssl-exp reports TLS certificate expiry for one or more hosts.
//
//	ssl-exp [-timeout 10s] [-warn 14] host[:port]...
//
// Exits non-zero when any certificate is expired, expiring within the warn
// window, or unreachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stamon-dev/stamon/internal/sslexp"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "connection timeout per host")
	warnDays := flag.Int("warn", 14, "warn when fewer than this many days remain")
	flag.Parse()

	hosts := flag.Args()
	if len(hosts) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ssl-exp [-timeout 10s] [-warn 14] host[:port]...")
		os.Exit(2)
	}

	exitCode := 0
	for _, host := range hosts {
		res, err := sslexp.Check(context.Background(), host, *timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", host, err)
			exitCode = 1
			continue
		}
		status := "ok"
		switch {
		case res.Expired:
			status = "EXPIRED"
			exitCode = 1
		case res.DaysLeft < *warnDays:
			status = "EXPIRING"
			exitCode = 1
		}
		fmt.Printf("%s\t%s\t%d days\texpires %s\tissuer %q\n",
			host, status, res.DaysLeft, res.NotAfter.Format(time.RFC3339), res.Issuer)
	}
	os.Exit(exitCode)
}
