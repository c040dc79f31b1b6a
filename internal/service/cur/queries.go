package cur

import (
	"fmt"

	"cloudsathi/internal/domain"
)

// usageStart parses the CUR string timestamp so it can be compared with DATE literals.
const usageStart = `date_parse(line_item_usage_start_date, '%Y-%m-%d %H:%i:%s')`

// rangePredicate restricts usage to the inclusive calendar range r.
func rangePredicate(r domain.DateRange) string {
	return fmt.Sprintf("%s >= DATE %s\n  AND %s < DATE %s",
		usageStart, QuoteLiteral(r.Start.Format(domain.DateLayout)),
		usageStart, QuoteLiteral(r.End.AddDate(0, 0, 1).Format(domain.DateLayout)))
}

func topResourcesSQL(table string, r domain.DateRange, limit int) string {
	return fmt.Sprintf(`SELECT
  line_item_resource_id,
  line_item_product_code,
  line_item_usage_type,
  line_item_currency_code,
  SUM(line_item_unblended_cost) AS total_cost
FROM %s
WHERE line_item_line_item_type = 'Usage'
  AND line_item_unblended_cost > 0
  AND %s
GROUP BY
  line_item_resource_id,
  line_item_product_code,
  line_item_usage_type,
  line_item_currency_code
ORDER BY total_cost DESC
LIMIT %d`, QuoteIdentifier(table), rangePredicate(r), limit)
}

func usageByOperationSQL(table string, r domain.DateRange, limit int) string {
	return fmt.Sprintf(`SELECT
  line_item_operation,
  line_item_product_code,
  line_item_currency_code,
  SUM(line_item_unblended_cost) AS total_cost
FROM %s
WHERE line_item_line_item_type = 'Usage'
  AND line_item_unblended_cost > 0
  AND %s
GROUP BY
  line_item_operation,
  line_item_product_code,
  line_item_currency_code
ORDER BY total_cost DESC
LIMIT %d`, QuoteIdentifier(table), rangePredicate(r), limit)
}
