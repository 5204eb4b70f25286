package alerts

import (
	"testing"

	"rent-radar/internal/domain"
)

func TestFormatMessage(t *testing.T) {
	cases := []struct {
		name    string
		listing domain.Listing
		want    string
	}{
		{
			name: "все поля",
			listing: domain.Listing{
				Title:        "Charming Flat",
				URL:          "https://example.com/listing/abc123",
				Price:        "$2,400",
				Neighborhood: "SOMA",
			},
			want: "New Listing: $2,400 - Charming Flat in SOMA. Link: https://example.com/listing/abc123",
		},
		{
			name: "без цены",
			listing: domain.Listing{
				Title:        "Room in Shared House",
				URL:          "https://example.com/listings/102",
				Neighborhood: "Mission",
			},
			want: "New Listing: Room in Shared House in Mission. Link: https://example.com/listings/102",
		},
		{
			name: "без района",
			listing: domain.Listing{
				Title: "Sunny Studio",
				URL:   "https://example.com/listings/101",
				Price: "$1,800",
			},
			want: "New Listing: $1,800 - Sunny Studio. Link: https://example.com/listings/101",
		},
		{
			name: "только заголовок и ссылка",
			listing: domain.Listing{
				Title: "Sunny Studio",
				URL:   "https://example.com/listings/101",
			},
			want: "New Listing: Sunny Studio. Link: https://example.com/listings/101",
		},
	}
	for _, tc := range cases {
		if got := FormatMessage(tc.listing); got != tc.want {
			t.Fatalf("%s:\nожидали %q\nполучили %q", tc.name, tc.want, got)
		}
	}
}

func TestEmailSubject(t *testing.T) {
	got := EmailSubject(domain.Listing{Title: "Sunny Studio"})
	if got != "New Rental Alert: Sunny Studio" {
		t.Fatalf("тема письма: получили %q", got)
	}
}
