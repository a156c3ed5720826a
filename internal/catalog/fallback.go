package catalog

import (
	"strings"

	"github.com/reelsync/backend/internal/domain"
)

const posterBase = "https://image.tmdb.org/t/p/w500/"

// fallbackMovies is served whenever the recommendation API fails or returns
// nothing.
var fallbackMovies = []domain.Movie{
	{ID: 550, Title: "Fight Club", Poster: posterBase + "pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg", Rating: 8.4, Genre: "Drama", Year: 1999},
	{ID: 157336, Title: "Interstellar", Poster: posterBase + "gEU2QniE6E77NI6lCU6MxlNBvIx.jpg", Rating: 8.6, Genre: "Sci-Fi", Year: 2014},
	{ID: 27205, Title: "Inception", Poster: posterBase + "9gk7adHYeDvHkCSEqAvQNLV5Uge.jpg", Rating: 8.4, Genre: "Action", Year: 2010},
	{ID: 155, Title: "The Dark Knight", Poster: posterBase + "qJ2tW6WMUDux911r6m7haRef0WH.jpg", Rating: 9.0, Genre: "Action", Year: 2008},
	{ID: 19995, Title: "Avatar", Poster: posterBase + "kyeqWdyUXW608qlYkRqosgbbJyK.jpg", Rating: 7.6, Genre: "Action", Year: 2009},
	{ID: 680, Title: "Pulp Fiction", Poster: posterBase + "fIE3lAGcZDV1G6XM5KmuWnNsPp1.jpg", Rating: 8.5, Genre: "Crime", Year: 1994},
	{ID: 13, Title: "Forrest Gump", Poster: posterBase + "arw2vcBveWOVZr6pxd9XTd1TdQa.jpg", Rating: 8.5, Genre: "Drama", Year: 1994},
	{ID: 122, Title: "The Lord of the Rings", Poster: posterBase + "6oom5QYQ2yQTMJIbnvbkBL9cHo6.jpg", Rating: 8.8, Genre: "Fantasy", Year: 2001},
	{ID: 603, Title: "The Matrix", Poster: posterBase + "f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg", Rating: 8.2, Genre: "Sci-Fi", Year: 1999},
	{ID: 11, Title: "Star Wars", Poster: posterBase + "6FfCtAuVAW8XJjZ7eWeLibRLWTw.jpg", Rating: 8.2, Genre: "Sci-Fi", Year: 1977},
	{ID: 129, Title: "Spirited Away", Poster: posterBase + "39wmItIWsg5sZMyRUHLkWBcuVCM.jpg", Rating: 8.5, Genre: "Animation", Year: 2001},
	{ID: 128, Title: "Princess Mononoke", Poster: posterBase + "jHWmNr7m544fJ8eItsfNk8fs2Ed.jpg", Rating: 8.3, Genre: "Animation", Year: 1997},
	{ID: 862, Title: "Toy Story", Poster: posterBase + "uXDfjJbdP4ijW5hWSBrPrlKpxab.jpg", Rating: 7.9, Genre: "Family", Year: 1995},
	{ID: 12, Title: "Finding Nemo", Poster: posterBase + "eHuGQ10FUzK1mdOY69wF5pGgEf5.jpg", Rating: 7.8, Genre: "Family", Year: 2003},
	{ID: 120, Title: "LOTR: Fellowship", Poster: posterBase + "6oom5QYQ2yQTMJIbnvbkBL9cHo6.jpg", Rating: 8.8, Genre: "Fantasy", Year: 2001},
}

// Fallback returns the built-in catalog filtered by genre and search. An
// empty match returns the whole catalog.
func Fallback(q domain.MovieQuery) []domain.Movie {
	genre := strings.ToLower(q.Genre)
	search := strings.ToLower(q.Search)

	var out []domain.Movie
	for _, m := range fallbackMovies {
		if genre != "" && !strings.Contains(strings.ToLower(m.Genre), genre) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.Title), search) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return append([]domain.Movie(nil), fallbackMovies...)
	}
	return out
}

func fallbackByID(id int) (domain.Movie, bool) {
	for _, m := range fallbackMovies {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Movie{}, false
}

func fallbackByTitle(title string) (domain.Movie, bool) {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return domain.Movie{}, false
	}
	for _, m := range fallbackMovies {
		if strings.Contains(strings.ToLower(m.Title), title) {
			return m, true
		}
	}
	return domain.Movie{}, false
}
