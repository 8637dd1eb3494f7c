// Package poi holds the local backend's catalog of Buenos Aires points of
// interest and schedules them into proposed itineraries.
package poi

import "github.com/baxperience/baxperience/pkg/polyline"

// POI is a place that can be scheduled.
type POI struct {
	ID              int64
	Name            string
	Type            string
	Category        string // preference slug
	CategoryName    string
	Zone            string
	Address         string
	Description     string
	Latitude        float64
	Longitude       float64
	DurationMinutes int
	Free            bool
	Rating          float64
	Price           float64
}

func (p POI) coordinate() polyline.Coordinate {
	return polyline.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
}

var defaultPOIs = []POI{
	{1, "Museo Nacional de Bellas Artes", "lugar", "museos", "Museos", "recoleta", "Av. del Libertador 1473", "Argentine and European art from the 19th and 20th centuries.", -34.5838, -58.3929, 90, true, 4.7, 0},
	{2, "Cementerio de la Recoleta", "lugar", "lugares_historicos", "Lugares Históricos", "recoleta", "Junín 1760", "Mausoleums of presidents, writers and Eva Perón.", -34.5875, -58.3930, 75, false, 4.7, 14000},
	{3, "Floralis Genérica", "lugar", "monumentos", "Monumentos", "recoleta", "Plaza de las Naciones Unidas", "Steel flower sculpture that opens with the sun.", -34.5817, -58.3933, 30, true, 4.6, 0},
	{4, "Café Tortoni", "lugar", "gastronomia", "Gastronomía", "monserrat", "Av. de Mayo 825", "The city's oldest café, open since 1858.", -34.6088, -58.3786, 60, false, 4.4, 9000},
	{5, "Plaza de Mayo y Casa Rosada", "lugar", "monumentos", "Monumentos", "monserrat", "Balcarce 50", "Historic square in front of the presidential palace.", -34.6081, -58.3703, 45, true, 4.6, 0},
	{6, "Caminito", "lugar", "lugares_historicos", "Lugares Históricos", "la_boca", "Caminito, La Boca", "Colourful conventillos and street tango.", -34.6394, -58.3629, 60, true, 4.5, 0},
	{7, "Puente de la Mujer", "lugar", "monumentos", "Monumentos", "puerto_madero", "Dique 3, Puerto Madero", "Rotating footbridge over the docks.", -34.6082, -58.3655, 45, true, 4.6, 0},
	{8, "MALBA", "lugar", "museos", "Museos", "palermo", "Av. Figueroa Alcorta 3415", "Latin American art museum.", -34.5771, -58.4035, 90, false, 4.6, 12000},
	{9, "Jardín Japonés", "lugar", "entretenimiento", "Entretenimiento", "palermo", "Av. Casares 2966", "Japanese garden with koi ponds.", -34.5795, -58.4100, 60, false, 4.5, 7000},
	{10, "Don Julio", "lugar", "gastronomia", "Gastronomía", "palermo", "Guatemala 4691", "Traditional parrilla.", -34.5863, -58.4245, 90, false, 4.7, 45000},
	{11, "Teatro Colón", "lugar", "entretenimiento", "Entretenimiento", "san_nicolas", "Cerrito 628", "Guided tour of the opera house.", -34.6011, -58.3831, 60, false, 4.8, 30000},
	{12, "Obelisco", "lugar", "monumentos", "Monumentos", "san_nicolas", "Av. 9 de Julio y Corrientes", "The city's landmark on Avenida 9 de Julio.", -34.6037, -58.3816, 30, true, 4.6, 0},
	{13, "Feria de San Telmo", "evento", "eventos", "Eventos", "san_telmo", "Defensa y Plaza Dorrego", "Antiques fair along Defensa street.", -34.6206, -58.3717, 60, true, 4.5, 0},
	{14, "Mercado de San Telmo", "lugar", "gastronomia", "Gastronomía", "san_telmo", "Defensa 961", "Covered market with food stalls.", -34.6209, -58.3721, 60, true, 4.4, 0},
}

// Catalog is an immutable list of places.
type Catalog struct {
	pois []POI
}

// NewCatalog copies pois into a catalog.
func NewCatalog(pois []POI) *Catalog {
	return &Catalog{pois: append([]POI(nil), pois...)}
}

// DefaultCatalog returns the built-in CABA catalog.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultPOIs)
}

// Len returns the number of places.
func (c *Catalog) Len() int {
	return len(c.pois)
}
