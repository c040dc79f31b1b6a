package athena

import "cloudsathi/internal/domain"

// mockColumns mirrors the line-item columns of a CUR top-resources query.
var mockColumns = []string{
	"line_item_resource_id",
	"line_item_product_code",
	"line_item_usage_type",
	"line_item_unblended_cost",
	"line_item_currency_code",
}

var mockRows = [][]string{
	{"i-0123456789abcdef0", "AmazonEC2", "RunInstances:SV006:t3.large", "145.20", "USD"},
	{"vol-0abcdef1234567890", "AmazonEC2", "EBS:VolumeUsage.gp2", "45.50", "USD"},
	{"arn:aws:rds:us-east-1:123456789012:db:prod-db", "AmazonRDS", "InstanceUsage:db.m5.large", "280.00", "USD"},
	{"arn:aws:s3:::my-production-bucket", "AmazonS3", "TimedStorage-ByteHrs", "89.30", "USD"},
	{"arn:aws:lambda:us-east-1:123456789012:function:process-data", "AWSLambda", "Lambda-GB-Second", "12.45", "USD"},
}

// MockResultSet returns the canned CUR rows served when no AWS credentials
// are configured. Each call returns a fresh copy.
func MockResultSet() *domain.ResultSet {
	rs := &domain.ResultSet{
		Columns: append([]string(nil), mockColumns...),
		Records: make([]domain.Record, 0, len(mockRows)),
	}
	for _, row := range mockRows {
		rec := make(domain.Record, len(mockColumns))
		for i, col := range mockColumns {
			v := row[i]
			rec[col] = &v
		}
		rs.Records = append(rs.Records, rec)
	}
	return rs
}
