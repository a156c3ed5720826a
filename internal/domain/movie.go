package domain

// Movie is a catalog entry as served by the recommendation API.
type Movie struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Poster   string  `json:"poster"`
	Rating   float64 `json:"rating"`
	Genre    string  `json:"genre,omitempty"`
	Year     int     `json:"year,omitempty"`
	Overview string  `json:"overview,omitempty"`
}

// MovieQuery carries the browse/search parameters of the catalog API.
type MovieQuery struct {
	Search string
	Genre  string
	Sort   string
	Page   int
	Limit  int
}

// Recommendation is the response of the recommender for one title.
type Recommendation struct {
	Query   string   `json:"query"`
	Movies  []string `json:"movies"`
	Posters []string `json:"posters"`
}
