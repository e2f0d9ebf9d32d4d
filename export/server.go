package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/sdr"
)

const (
	contentType             = "application/json"
	CollectEndpoint         = "rfmonitor/v1/collect"
	defaultSendRecordAmount = 10
)

// CollectResponse is what the server answers to a collect request.
type CollectResponse struct {
	Status      string `json:"status"`
	RecordCount int    `json:"recordCount"`
}

// Server pushes records to an rfmonitor server in batches.
type Server struct {
	Server            string
	SendRecordsAmount int

	// Client defaults to a plain resty client.
	Client *resty.Client
}

func (s *Server) Write(ctx context.Context, records <-chan sdr.Record) error {
	sendRecordsAmount := defaultSendRecordAmount
	if s.SendRecordsAmount > 0 {
		sendRecordsAmount = s.SendRecordsAmount
	}
	if s.Client == nil {
		s.Client = resty.New()
	}

	var recordsToSend []sdr.Record
	for r := range records {
		recordsToSend = append(recordsToSend, r)
		if len(recordsToSend) < sendRecordsAmount {
			continue // we haven't collected enough records to send yet
		}
		if err := s.send(ctx, recordsToSend); err != nil {
			glog.Warningf("error POSTing records: %s\n", err)
			continue
		}
		recordsToSend = nil
	}

	if len(recordsToSend) > 0 {
		if err := s.send(ctx, recordsToSend); err != nil {
			return fmt.Errorf("unable to send %d remaining records: %w", len(recordsToSend), err)
		}
	}
	return nil
}

func (s *Server) send(ctx context.Context, records []sdr.Record) error {
	collectResponse := CollectResponse{}
	resp, err := s.Client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(records).
		SetResult(&collectResponse).
		Post(fmt.Sprintf("%s/%s", strings.TrimRight(s.Server, "/"), CollectEndpoint))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("server responded with %s", resp.Status())
	}
	glog.Infof("submitted %d records to server %s", collectResponse.RecordCount, s.Server)
	return nil
}
