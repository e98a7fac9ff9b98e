// awscurl signs an ad-hoc HTTP request with SigV4 and prints the
// equivalent curl command, for poking at a service endpoint by hand.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethanadams/awscore/credential"
	"github.com/ethanadams/awscore/request"
	"github.com/ethanadams/awscore/signing"
)

func main() {
	endpoint := flag.String("endpoint", os.Getenv("AWS_ENDPOINT"), "service endpoint URL")
	accessKey := flag.String("access-key", os.Getenv("AWS_ACCESS_KEY_ID"), "access key")
	secretKey := flag.String("secret-key", os.Getenv("AWS_SECRET_ACCESS_KEY"), "secret key")
	sessionToken := flag.String("session-token", os.Getenv("AWS_SESSION_TOKEN"), "session token (optional)")
	region := flag.String("region", "us-east-1", "AWS region")
	signingName := flag.String("signing-name", "execute-api", "SigV4 signing name (e.g. s3, dynamodb, execute-api)")
	method := flag.String("method", http.MethodGet, "HTTP method")
	path := flag.String("path", "/", "request path")
	data := flag.String("data", "", "request body")
	size := flag.Int("size", 0, "random body size in bytes (overrides -data)")
	s3 := flag.Bool("s3", false, "sign like S3 (single URI encoding pass)")
	presign := flag.Bool("presign", false, "produce a presigned URL instead of signed headers")
	expires := flag.Duration("expires", 15*time.Minute, "presigned URL expiry")
	flag.Parse()

	if *endpoint == "" || *accessKey == "" || *secretKey == "" {
		fmt.Fprintln(os.Stderr, "Usage: awscurl -endpoint URL -access-key KEY -secret-key SECRET [-signing-name NAME] [-region REGION] [-method METHOD] [-path PATH] [-data BODY]")
		fmt.Fprintln(os.Stderr, "\nEnvironment variables: AWS_ENDPOINT, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN")
		os.Exit(1)
	}

	cred := credential.Credential{
		AccessKeyID:     *accessKey,
		SecretAccessKey: *secretKey,
		SessionToken:    *sessionToken,
	}

	var payload []byte
	if *size > 0 {
		payload = make([]byte, *size)
		if _, err := rand.Read(payload); err != nil {
			fmt.Fprintf(os.Stderr, "error generating random payload: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "# generated %d bytes of random payload\n", *size)
	} else if *data != "" {
		payload = []byte(*data)
	}

	u, err := url.Parse(strings.TrimRight(*endpoint, "/") + *path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing URL: %v\n", err)
		os.Exit(1)
	}

	req := &request.AWSRequest{
		Method: strings.ToUpper(*method),
		URL:    u,
		Header: http.Header{},
		Body:   payload,
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	signer := signing.New(signing.WithDoubleURIEncode(!*s3))
	now := time.Now()

	if *presign {
		signedURL, err := signer.SignURL(context.Background(), req, cred, *signingName, *region, *expires, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error presigning: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("curl -v -X %s '%s'\n", req.Method, signedURL)
		return
	}

	digest := signing.ByteBuffer(payload)
	if err := signer.SignHeaders(context.Background(), req, cred, *signingName, *region, digest, now); err != nil {
		fmt.Fprintf(os.Stderr, "error signing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("curl -v -X %s \\\n", req.Method)
	for name, values := range req.Header {
		for _, value := range values {
			fmt.Printf("  -H '%s: %s' \\\n", name, value)
		}
	}
	if payload != nil {
		if *size > 0 {
			fmt.Printf("  --data-binary \"$(dd if=/dev/urandom bs=%d count=1 2>/dev/null)\" \\\n", *size)
		} else {
			fmt.Printf("  --data-binary '%s' \\\n", *data)
		}
	}
	fmt.Printf("  '%s'\n", req.URL.String())
}
