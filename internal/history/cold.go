package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ColdArchive uploads monthly rollup documents to an S3-compatible
// off-box store — the cold tier. The history HTTP endpoints, including
// compare and year-over-year, do not read from it. Resolves spec §9's inconsistent archive-path open question in
// favor of the flat "<root>/history/<YYYYMM>_history.json" form.
type ColdArchive struct {
	client *s3.Client
	bucket string
	prefix string
}

// MonthlyDocument is the JSON body uploaded for one calendar month.
type MonthlyDocument struct {
	Period string         `json:"period"`
	Tanks  []MonthlyStats `json:"tanks"`
	Alarms []AlarmLogEntry `json:"alarms"`
}

// NewColdArchive builds an archive client for bucket, loading AWS
// credentials/region from the standard SDK default chain plus the
// supplied region override.
func NewColdArchive(ctx context.Context, bucket, prefix, region string) (*ColdArchive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("cold archive: load aws config: %w", err)
	}
	return &ColdArchive{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// key builds "<prefix>/history/<YYYYMM>_history.json".
func (c *ColdArchive) key(yyyymm string) string {
	return fmt.Sprintf("%s/history/%s_history.json", c.prefix, yyyymm)
}

// Upload writes doc to the archive for calendar month yyyymm (e.g. "202607").
func (c *ColdArchive) Upload(ctx context.Context, yyyymm string, doc MonthlyDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key(yyyymm)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Fetch retrieves a previously archived month's document, if present.
func (c *ColdArchive) Fetch(ctx context.Context, yyyymm string) (*MonthlyDocument, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(yyyymm)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	var doc MonthlyDocument
	if err := json.NewDecoder(out.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
