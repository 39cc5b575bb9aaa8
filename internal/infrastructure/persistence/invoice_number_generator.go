package persistence

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fieldops/backend/internal/domain/invoicing"
)

// InvoiceNumberPrefix starts every invoice number
const InvoiceNumberPrefix = "INV-"

// SnowflakeNumberGenerator issues INV-<base36 snowflake> numbers. Numbers are
// unique across processes as long as every process uses its own node id.
type SnowflakeNumberGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeNumberGenerator creates a generator for node (0-1023)
func NewSnowflakeNumberGenerator(node int64) (*SnowflakeNumberGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &SnowflakeNumberGenerator{node: n}, nil
}

// NextInvoiceNumber returns a new invoice number
func (g *SnowflakeNumberGenerator) NextInvoiceNumber() string {
	return InvoiceNumberPrefix + strings.ToUpper(g.node.Generate().Base36())
}

var _ invoicing.NumberGenerator = (*SnowflakeNumberGenerator)(nil)
