package youtube

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"growthbot/internal/social"
)

var channelParts = []string{"statistics", "snippet"}

// channel is the subset of a channels.list item the fetcher reads.
type channel struct {
	ID          string
	Title       string
	Subscribers int64
	Hidden      bool
}

// channelLookup returns the channels matching either id or handle.
// An empty slice means no match.
type channelLookup interface {
	lookup(ctx context.Context, id, handle string) ([]channel, error)
}

type dataAPI struct {
	svc *yt.Service
}

func newDataAPI(ctx context.Context, apiKey string, opts ...option.ClientOption) (*dataAPI, error) {
	svc, err := yt.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &dataAPI{svc: svc}, nil
}

func (d *dataAPI) lookup(ctx context.Context, id, handle string) ([]channel, error) {
	call := d.svc.Channels.List(channelParts)
	if id != "" {
		call = call.Id(id)
	} else {
		call = call.ForHandle(handle)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]channel, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it == nil {
			continue
		}
		ch := channel{ID: it.Id}
		if it.Snippet != nil {
			ch.Title = it.Snippet.Title
		}
		if it.Statistics != nil {
			ch.Subscribers = int64(it.Statistics.SubscriberCount)
			ch.Hidden = it.Statistics.HiddenSubscriberCount
		}
		out = append(out, ch)
	}
	return out, nil
}

// classify maps an API failure onto the fetch error taxonomy.
func classify(err error) *social.FetchError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusNotFound {
			return social.NewFetchError(social.YouTube, social.ErrNotFound, err)
		}
		return social.NewFetchError(social.YouTube, social.ErrProvider, err)
	}
	return social.NetworkError(social.YouTube, err)
}
