package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/slots"
)

// Identity prints the address and name each slot advertises.
type Identity struct {
	Identity IdentityConfig `embed:"" prefix:"identity."`

	out io.Writer
}

func (c *Identity) Run() error {
	base, err := c.Identity.base()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(writer(c.out), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "base\t%s\t%s\n", base, c.Identity.Vendor)
	for i := range slots.Count {
		addr, name := identity.Derive(base, c.Identity.Name, i)
		fmt.Fprintf(tw, "slot %d\t%s\t%s\n", i, addr, name)
	}
	return tw.Flush()
}
