package fields

// Abidjan communes and common address words. Short ones like "bd" or "rue"
// only match as whole words.
var gazetteer = []string{
	"cocody", "yopougon", "yop", "plateau", "plateaux", "marcory", "treichville",
	"koumassi", "abobo", "adjame", "attecoube", "port bouet", "riviera", "angre",
	"bingerville", "anyama", "songon", "bassam", "zone 4", "vridi", "deux plateaux",
	"rue", "bd", "boulevard", "avenue", "av", "carrefour", "quartier", "qtier",
	"cite", "residence", "lot", "ilot", "immeuble", "pharmacie", "marche",
	"gare", "ecole", "eglise", "mosquee", "station",
}
