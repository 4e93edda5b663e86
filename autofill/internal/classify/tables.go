package classify

// Subfield and personal type names. Repeated tables share names where the
// meaning is the same ("company" is a company in both personal and
// experience rows).
const (
	FirstName    = "firstName"
	LastName     = "lastName"
	FullName     = "fullName"
	Email        = "email"
	Phone        = "phone"
	Location     = "location"
	Company      = "company"
	Title        = "title"
	LinkedIn     = "linkedin"
	GitHub       = "github"
	Portfolio    = "portfolio"
	Summary      = "summary"
	Skills       = "skills"
	Education    = "education"
	Degree       = "degree"
	Major        = "major"
	StartDate    = "startDate"
	EndDate      = "endDate"
	Description  = "description"
	Name         = "name"
	Technologies = "technologies"
	Issuer       = "issuer"
	Date         = "date"
)

// PersonalTable maps generic profile fields.
var PersonalTable = (&Table{Name: "personal"}).add(
	entry(FirstName, `first.*name|fname|given.*name|christian.*name`),
	entry(LastName, `last.*name|lname|surname|family.*name`),
	entry(FullName, `full.*name`).guarded(`name`, `.*(?:first|last)`),
	entry(Email, `email|e.*mail|mail`),
	entry(Phone, `phone|telephone|mobile|cell|contact.*number`),
	entry(Location, `address|street|location|city|town|zip|postal|country|state`),
	entry(Company, `company|employer|organization|workplace`),
	entry(Title, `title|position|job.*title|role|current.*position`),
	entry(LinkedIn, `linkedin|linked.*in`),
	entry(GitHub, `github|git.*hub`),
	entry(Portfolio, `portfolio|website|url|personal.*site`),
	entry(Summary, `summary|bio|about|description|cover.*letter|motivation`),
	entry(Skills, `skills|expertise|technologies|tech.*stack`),
	entry(Education, `school|university|college|education|institution|academy`),
	entry(Degree, `degree|qualification|diploma|course|study`),
	entry(Major, `major|field.*of.*study|field.*study|specialization`),
)

// ExperienceTable maps fields of a repeated work-history entry.
var ExperienceTable = (&Table{Name: "experience"}).add(
	entry(Company, `company|employer|organization|workplace|company.*name`),
	entry(Title, `title|position|job.*title|job.*position`).guarded(`role`, `\s*model`),
	entry(StartDate, `start.*date|from.*date|begin.*date|employment.*start|start.*month|start.*year`),
	entry(EndDate, `end.*date|to.*date|until.*date|employment.*end|end.*month|end.*year`),
	entry(Description, `description|responsibilities|duties|accomplishments|job.*description|summary|details`),
	entry(Location, `location|city|address|work.*location|job.*location`),
)

// ProjectTable maps fields of a repeated project entry.
var ProjectTable = (&Table{Name: "project"}).add(
	entry(Name, `project.*name|project\s*title|project`),
	entry(Description, `project.*description|overview|summary`),
	entry(Technologies, `technology|tools|tech.*stack|technologies`),
)

// LicenseTable maps fields of a repeated license or certification entry.
var LicenseTable = (&Table{Name: "license"}).add(
	entry(Name, `certification|license|award|honor|credential`),
	entry(Issuer, `issuer|organization|authority`),
	entry(Date, `date.*(?:earned|issued|award|obtained)`),
)
