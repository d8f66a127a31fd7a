/*
 * Copyright (c) 2013-2019, Jeremy Bingham (<jeremy@goiardi.gl>)
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package util

// S3 support for fetching bootstrap rule files. A rule file option may name a
// local path or an s3:// URI; this fetches the latter.

import (
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/portiere/portiere/config"
	"github.com/tideland/golib/logger"
)

type s3client struct {
	s3 *s3.S3
}

var s3cli *s3client

// InitS3 sets up the session and whatnot for fetching objects from S3.
func InitS3(conf *config.Conf) error {
	sess := session.New(&aws.Config{Region: aws.String(conf.AWSRegion), DisableSSL: aws.Bool(conf.AWSDisableSSL), Endpoint: aws.String(conf.S3Endpoint), S3ForcePathStyle: aws.Bool(true)})

	s3cli = new(s3client)
	s3cli.s3 = s3.New(sess)
	return nil
}

// IsS3URI reports whether the given rule file location points at S3 rather
// than the local filesystem.
func IsS3URI(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

// S3GetObject fetches the body of the object the s3:// URI points at.
func S3GetObject(uri string) ([]byte, error) {
	if s3cli == nil {
		return nil, fmt.Errorf("S3 has not been initialized, cannot fetch %s", uri)
	}
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	output, err := s3cli.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer output.Body.Close()
	body, err := ioutil.ReadAll(output.Body)
	if err != nil {
		return nil, err
	}
	logger.Debugf("fetched s3 object %s (%d bytes) in %d ms", uri, len(body), time.Since(start)/time.Millisecond)
	return body, nil
}

func splitS3URI(uri string) (string, string, error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		err := fmt.Errorf("invalid s3 URI %s: must look like s3://bucket/key", uri)
		return "", "", err
	}
	return parts[0], parts[1], nil
}
